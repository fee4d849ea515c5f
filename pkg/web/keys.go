package web

import "context"

type requestIDKey struct{}
type sessionKey struct{}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and a boolean indicating whether it was found.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// WithSession stores the resolved session key, e.g. "user:<sub>" or "session:<uuid>".
func WithSession(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey{}, key)
}

// GetSession returns the session key stored by the Session middleware.
func GetSession(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKey{}).(string)
	return key, ok && key != ""
}
