package domain

import "time"

// Event types emitted by the client core.
const (
	EventLoginSucceeded  = "login_succeeded"
	EventLoginFailed     = "login_failed"
	EventCallbackIgnored = "callback_ignored"
	EventRoutingDecided  = "routing_decided"
	EventStartupReady    = "startup_ready"
)

// Event is a product telemetry event. Attributes are flat string pairs.
type Event struct {
	ID         string
	Type       string
	UserID     string // empty when signed out
	Source     string
	Attributes map[string]string
	CreatedAt  time.Time
}
