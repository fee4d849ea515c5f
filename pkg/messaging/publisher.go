// Package messaging defines the broker-agnostic event publishing contract.
package messaging

import (
	"context"
)

// Subjects published by the storefront.
const (
	ErrorsReportedSubject = "storefront.errors.reported"
	StorefrontStream      = "STOREFRONT"
)

// Event is a message with a routing subject and an encoded body.
type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
