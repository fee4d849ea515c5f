package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
)

// ErrorReportedEvent carries one report to the remote error sink.
type ErrorReportedEvent struct {
	Carrier        map[string]string `json:"carrier,omitempty"`
	ID             string            `json:"id"`
	ErrorType      string            `json:"error_type"`
	ErrorMessage   string            `json:"error_message"`
	RootCause      string            `json:"root_cause,omitempty"`
	Service        string            `json:"service"`
	AdditionalInfo map[string]any    `json:"additional_info,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func (e ErrorReportedEvent) Subject() string {
	return messaging.ErrorsReportedSubject
}

func (e ErrorReportedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
