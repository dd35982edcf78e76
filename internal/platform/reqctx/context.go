// Package reqctx carries per-attempt and per-request identifiers through outbound calls.
package reqctx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{ name string }

var (
	attemptIDKey = contextKey{"attempt_id"}
	requestIDKey = contextKey{"request_id"}
)

// Header names used when forwarding identifiers to the backend and identity provider.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAttemptID = "X-Login-Attempt"
)

// WithAttemptID returns a context tagged with a login attempt ID.
func WithAttemptID(ctx context.Context, attemptID string) context.Context {
	return context.WithValue(ctx, attemptIDKey, attemptID)
}

// AttemptID returns the login attempt ID from context and true if set; otherwise "", false.
func AttemptID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(attemptIDKey).(string)
	return v, ok && v != ""
}

// WithRequestID returns a context with the given request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID from context, or a fresh UUID when none is set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v
	}
	return uuid.New().String()
}

// NewAttempt returns ctx tagged with a fresh login attempt ID and that ID.
func NewAttempt(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return WithAttemptID(ctx, id), id
}

// SetHeaders copies the request and attempt IDs from ctx onto req.
func SetHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set(HeaderRequestID, RequestID(ctx))
	if id, ok := AttemptID(ctx); ok {
		req.Header.Set(HeaderAttemptID, id)
	}
}
