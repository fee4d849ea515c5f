// Package errors provides the sentinel errors shared across the storefront.
package errors

import "errors"

var ErrProductNotFound = errors.New("product not found")
var ErrInvalidVariant = errors.New("size or color not offered for product")
var ErrSessionRequired = errors.New("session identifier is required")
var ErrSnapshotNotFound = errors.New("snapshot not found")
var ErrStorageUnavailable = errors.New("snapshot storage unavailable")
var ErrInvalidMeasurements = errors.New("measurements must be positive numbers")
var ErrInvalidFilter = errors.New("invalid filter criteria")
