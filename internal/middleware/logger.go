package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

const (
	// LoggerContextKey is the context key for the request-scoped logger
	LoggerContextKey contextKey = "logger"
)

// WithRequestLogger injects a request-scoped logger carrying method, path
// and (when RequestID ran first) the request id, so every log line emitted
// while handling a checkout or webhook can be correlated.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			if id := GetRequestID(r.Context()); id != "" {
				l = l.With(slog.String("request_id", id))
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), LoggerContextKey, l)))
		})
	}
}

// GetLogger returns the request-scoped logger, the optional fallback when
// the middleware did not run, and slog.Default() as a last resort.
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(LoggerContextKey).(*slog.Logger); ok {
		return l
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return slog.Default()
}
