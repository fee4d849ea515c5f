package reporter

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// PublishingReporter ships reports to a remote sink through a message publisher.
// A failed publish is logged and dropped.
type PublishingReporter struct {
	publisher messaging.Publisher
	service   string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublishingReporter creates a reporter that publishes ErrorReportedEvents for service.
func NewPublishingReporter(publisher messaging.Publisher, service string, timeout time.Duration, logger *slog.Logger) *PublishingReporter {
	return &PublishingReporter{
		publisher: publisher,
		service:   service,
		timeout:   timeout,
		logger:    logger.With("component", "reporter"),
		now:       time.Now,
	}
}

func (r *PublishingReporter) Report(ctx context.Context, err error, ec ErrorContext) {
	if err == nil {
		return
	}
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	event := events.ErrorReportedEvent{
		Carrier:        carrier,
		ID:             uuid.NewString(),
		ErrorType:      string(typeOrUnknown(ec.Type)),
		ErrorMessage:   err.Error(),
		Service:        r.service,
		AdditionalInfo: ec.Info,
		OccurredAt:     r.now().UTC(),
	}
	if root := Root(err); root != err {
		event.RootCause = root.Error()
	}

	// the report outlives a cancelled request
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if pubErr := r.publisher.Publish(pubCtx, event); pubErr != nil {
		r.logger.WarnContext(ctx, "Failed to publish error report", "error", pubErr, "report_id", event.ID)
	}
}
