// Package logger decorates slog handlers with request-scoped attributes.
package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// ContextHandler is a wrapper around slog.Handler that adds trace, request and
// session identifiers found in the context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{
		Handler: handler,
	}
}

// Handle processes a log record and adds context information.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		r.AddAttrs(slog.String("trace_id", span.SpanContext().TraceID().String()))
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	if session, ok := web.GetSession(ctx); ok {
		r.AddAttrs(slog.String("session", RedactSession(session)))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes added.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		Handler: h.Handler.WithAttrs(attrs),
	}
}

// WithGroup returns a new ContextHandler with the given group added.
func (h *ContextHandler) WithGroup(group string) slog.Handler {
	return &ContextHandler{
		Handler: h.Handler.WithGroup(group),
	}
}

// sessionPrefixLen is how much of a session id survives in logs.
const sessionPrefixLen = 8

// RedactSession shortens the id after the last colon of a session or snapshot
// key. Anyone holding a full anonymous session id can read and change that cart.
func RedactSession(key string) string {
	i := strings.LastIndex(key, ":") + 1
	if len(key)-i > sessionPrefixLen {
		return key[:i+sessionPrefixLen] + "..."
	}
	return key
}
