// Package reporter ships errors that must not reach the caller (failed snapshot
// writes, unreadable snapshots, collaborator outages) to an error-reporting sink.
package reporter

import (
	"context"
	"errors"
	"log/slog"
)

// ErrorType classifies a reported error.
type ErrorType string

const (
	TypeAuth       ErrorType = "auth"
	TypeNetwork    ErrorType = "network"
	TypeComponent  ErrorType = "component"
	TypeValidation ErrorType = "validation"
	TypeStorage    ErrorType = "storage"
	TypeUnknown    ErrorType = "unknown"
)

// ErrorContext describes where an error came from.
type ErrorContext struct {
	Type ErrorType
	Info map[string]any
}

// Reporter receives errors. Report must not panic and must not block for long.
type Reporter interface {
	Report(ctx context.Context, err error, ec ErrorContext)
}

// LogReporter writes reports to a structured logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a Reporter that logs at error level.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With("component", "reporter")}
}

func (r *LogReporter) Report(ctx context.Context, err error, ec ErrorContext) {
	if err == nil {
		return
	}
	attrs := []any{"error_type", string(typeOrUnknown(ec.Type)), "error", err.Error()}
	if len(ec.Info) > 0 {
		attrs = append(attrs, "additional_info", ec.Info)
	}
	r.logger.ErrorContext(ctx, "Error reported", attrs...)
}

// Multi fans a report out to every reporter.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, err error, ec ErrorContext) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, err, ec)
		}
	}
}

// Nop discards reports.
type Nop struct{}

func (Nop) Report(context.Context, error, ErrorContext) {}

func typeOrUnknown(t ErrorType) ErrorType {
	if t == "" {
		return TypeUnknown
	}
	return t
}

// Root unwraps err to its innermost cause.
func Root(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
