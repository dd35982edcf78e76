package reqctx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestAttemptID_RoundTrip(t *testing.T) {
	ctx := WithAttemptID(context.Background(), "attempt-1")
	got, ok := AttemptID(ctx)
	if !ok || got != "attempt-1" {
		t.Errorf("AttemptID = %q, %v; want attempt-1, true", got, ok)
	}
}

func TestAttemptID_Missing(t *testing.T) {
	if got, ok := AttemptID(context.Background()); ok || got != "" {
		t.Errorf("AttemptID = %q, %v; want empty, false", got, ok)
	}
	if _, ok := AttemptID(WithAttemptID(context.Background(), "")); ok {
		t.Error("empty attempt ID should report not set")
	}
}

func TestRequestID_UsesContextValue(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID = %q, want req-1", got)
	}
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	got := RequestID(context.Background())
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("RequestID = %q, want a UUID: %v", got, err)
	}
}

func TestNewAttempt(t *testing.T) {
	ctx, id := NewAttempt(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("attempt id %q is not a UUID: %v", id, err)
	}
	got, ok := AttemptID(ctx)
	if !ok || got != id {
		t.Errorf("AttemptID = %q, %v; want %q, true", got, ok, id)
	}
}

func TestSetHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	ctx := WithAttemptID(WithRequestID(context.Background(), "req-9"), "att-9")
	SetHeaders(ctx, req)
	if got := req.Header.Get(HeaderRequestID); got != "req-9" {
		t.Errorf("%s = %q, want req-9", HeaderRequestID, got)
	}
	if got := req.Header.Get(HeaderAttemptID); got != "att-9" {
		t.Errorf("%s = %q, want att-9", HeaderAttemptID, got)
	}

	bare := httptest.NewRequest("GET", "/", nil)
	SetHeaders(context.Background(), bare)
	if bare.Header.Get(HeaderRequestID) == "" {
		t.Error("request ID should be generated when missing")
	}
	if bare.Header.Get(HeaderAttemptID) != "" {
		t.Error("attempt header should be absent without an attempt")
	}
}
