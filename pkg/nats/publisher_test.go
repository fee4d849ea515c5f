package nats

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// mockJetStream captures published messages and returns a preset error.
type mockJetStream struct {
	msgs  []*nats.Msg
	error error
}

func (m *mockJetStream) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.msgs = append(m.msgs, msg)
	if m.error != nil {
		return nil, m.error
	}
	return &jetstream.PubAck{Stream: "STOREFRONT"}, nil
}

func TestPublisher_Publish(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	event := events.ErrorReportedEvent{ID: "r-1", ErrorType: "storage", ErrorMessage: "boom"}

	t.Run("Success - payload on subject with trace header", func(t *testing.T) {
		// given
		js := &mockJetStream{}
		// when
		err := NewPublisher(js).Publish(ctx, event)
		// then
		require.NoError(t, err)
		require.Len(t, js.msgs, 1)
		assert.Equal(t, event.Subject(), js.msgs[0].Subject)
		assert.Contains(t, string(js.msgs[0].Data), `"id":"r-1"`)
		assert.Contains(t, http.Header(js.msgs[0].Header).Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
	})

	t.Run("Failure - jetstream error is wrapped", func(t *testing.T) {
		// given
		js := &mockJetStream{error: errors.New("no responders")}
		// when
		err := NewPublisher(js).Publish(ctx, event)
		// then
		assert.ErrorIs(t, err, js.error)
	})
}
