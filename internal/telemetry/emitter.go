package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gig-marketplace/client/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// NewEvent returns an event with a fresh ID and the current time.
func NewEvent(eventType, source, userID string, attrs map[string]string) *domain.Event {
	return &domain.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Source:     source,
		Attributes: attrs,
		CreatedAt:  time.Now().UTC(),
	}
}
