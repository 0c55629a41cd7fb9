package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClientRequestIDHeader carries a caller-chosen correlation ID
	ClientRequestIDHeader = "X-Client-Request-Id"
	// RequestIDHeader carries the ID the server assigns to each request
	RequestIDHeader = "X-Request-Id"

	// ClientRequestIDKey is the context key for the client request ID
	ClientRequestIDKey contextKey = "client-request-id"
	// RequestIDKey is the context key for the server request ID
	RequestIDKey contextKey = "request-id"
)

// Telemetry echoes X-Client-Request-Id when present and assigns a fresh
// X-Request-Id to every request. Both IDs are stored in the request context.
func Telemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientRequestID := r.Header.Get(ClientRequestIDHeader)
		requestID := uuid.New().String()

		if clientRequestID != "" {
			w.Header().Set(ClientRequestIDHeader, clientRequestID)
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := r.Context()
		if clientRequestID != "" {
			ctx = context.WithValue(ctx, ClientRequestIDKey, clientRequestID)
		}
		ctx = context.WithValue(ctx, RequestIDKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientRequestID retrieves the client request ID from the context
func GetClientRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ClientRequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetRequestID retrieves the server request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
