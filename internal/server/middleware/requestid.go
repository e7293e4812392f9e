// Package middleware provides the HTTP middleware chain for the public
// server: request IDs, panic recovery with JSON error envelopes, request
// logging, and Prometheus instrumentation.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader is the inbound and outbound request ID header.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the context and response.
// An inbound X-Request-ID is trusted; otherwise one is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from ctx, empty if absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
