// Package errorsink collects error reports published by storefront instances.
package errorsink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ackableMsg is the part of jetstream.Msg the sink relies on.
type ackableMsg interface {
	Data() []byte
	Ack() error
	Nak() error
}

type Sink struct {
	logger   *slog.Logger
	received metric.Int64Counter
}

func NewSink(logger *slog.Logger) (*Sink, error) {
	received, err := otel.Meter("github.com/abgdnv/storefront/internal/errorsink").Int64Counter(
		"storefront.errors.received",
		metric.WithDescription("Error reports consumed from the stream"),
	)
	if err != nil {
		return nil, err
	}
	return &Sink{logger: logger.With("component", "errorsink"), received: received}, nil
}

// Start creates the durable consumer and runs cfg.Workers fetch loops until ctx is cancelled.
func (s *Sink) Start(ctx context.Context, js jetstream.JetStream, cfg config.SubscriberConfig) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return err
	}
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			return s.runWorker(gCtx, consumer, cfg)
		})
	}
	return g.Wait()
}

func (s *Sink) runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			s.logger.Error("failed to fetch messages", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
			continue
		}
		for msg := range batch.Messages() {
			s.handleMessage(ctx, msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			s.logger.Warn("batch finished with error", "error", err)
		}
	}
}

// handleMessage logs one report under the trace that produced it. Undecodable payloads are nacked.
func (s *Sink) handleMessage(ctx context.Context, msg ackableMsg) {
	if msg == nil {
		s.logger.Error("received nil message")
		return
	}
	var event events.ErrorReportedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		s.logger.Error("failed to unmarshal error report", "error", err)
		if err := msg.Nak(); err != nil {
			s.logger.Error("failed to nack message", "error", err)
		}
		return
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(event.Carrier))
	attrs := []any{
		slog.String("report_id", event.ID),
		slog.String("service", event.Service),
		slog.String("error_type", event.ErrorType),
		slog.String("error_message", event.ErrorMessage),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.RootCause != "" {
		attrs = append(attrs, slog.String("root_cause", event.RootCause))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}
	if len(event.AdditionalInfo) > 0 {
		attrs = append(attrs, slog.Any("additional_info", event.AdditionalInfo))
	}
	s.logger.ErrorContext(ctx, "error reported", attrs...)
	s.received.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", event.Service),
		attribute.String("error_type", event.ErrorType),
	))

	if err := msg.Ack(); err != nil {
		s.logger.Error("failed to ack message", "error", err)
	}
}
