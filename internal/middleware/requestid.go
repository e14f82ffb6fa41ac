package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id on both request and response.
	RequestIDHeader = "X-Request-ID"

	// RequestIDContextKey is the context key for the request id
	RequestIDContextKey contextKey = "request_id"
)

// RequestID tags every request with an id, reusing one supplied upstream
// (load balancer, reverse proxy) and minting a uuid otherwise. The id is
// echoed on the response so webhook deliveries can be traced against
// gateway dashboards.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), RequestIDContextKey, id)))
	})
}

// GetRequestID returns the request id stored by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
