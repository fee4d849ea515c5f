package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// XSessionID carries the anonymous shopper's session id, a UUID minted by the client.
const XSessionID = "X-Session-Id"

// Session resolves who owns the request's commerce state. A bearer token,
// when a verifier is configured, yields "user:<sub>"; otherwise a valid
// X-Session-Id yields "session:<uuid>". Requests with neither pass through
// without a session; handlers that need one reject them.
func Session(verifier auth.Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authHeader := r.Header.Get("Authorization"); authHeader != "" && verifier != nil {
				tokenString := strings.TrimPrefix(authHeader, "Bearer ")
				if tokenString == authHeader {
					http.Error(w, "Bearer token is required", http.StatusUnauthorized)
					return
				}
				token, err := verifier.Verify(r.Context(), tokenString)
				if err != nil {
					http.Error(w, "Invalid token", http.StatusUnauthorized)
					return
				}
				subject, ok := token.Subject()
				if !ok || subject == "" {
					http.Error(w, "no claim `sub`", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), "user:"+subject)))
				return
			}

			if raw := r.Header.Get(XSessionID); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					http.Error(w, "Invalid "+XSessionID+" header", http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), "session:"+id.String())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDInjector creates a middleware that injects request id
func RequestIDInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := WithRequestID(r.Context(), reqID)
		w.Header().Set(middleware.RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StructuredLogger creates a middleware that logs HTTP requests in a structured format.
func StructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.InfoContext(r.Context(), "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes_written", ww.BytesWritten(),
					"duration_ms", float64(time.Since(start).Nanoseconds())/1e6,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent(),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Recoverer is a middleware that recovers from panics and logs them using the provided logger.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.ErrorContext(r.Context(), "Panic recovered", "panic", rvr)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
