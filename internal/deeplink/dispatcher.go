// Package deeplink receives OAuth redirect URLs from the host (mobile deep links or the loopback
// server used on desktop) and hands them to the login flow.
package deeplink

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"

	"gig-marketplace/client/internal/identity/service"
	sessiondomain "gig-marketplace/client/internal/session/domain"
)

var ErrUnknownLink = errors.New("deeplink: not an auth callback")

// Exchanger is the login flow's callback entry point.
type Exchanger interface {
	Exchange(ctx context.Context, callbackURL string, cont service.Continuation) (sessiondomain.Session, error)
}

// Dispatcher routes delivered URLs. Only auth callbacks are handled; callbacks arriving
// outside a login attempt are dropped by the Exchanger and reported as service.ErrUnsolicitedCallback.
type Dispatcher struct {
	exchanger Exchanger
	cont      service.Continuation
}

// NewDispatcher returns a Dispatcher that passes cont to every exchange.
func NewDispatcher(exchanger Exchanger, cont service.Continuation) *Dispatcher {
	return &Dispatcher{exchanger: exchanger, cont: cont}
}

// Deliver handles rawURL. It returns ErrUnknownLink for links that are not auth callbacks.
func (d *Dispatcher) Deliver(ctx context.Context, rawURL string) (sessiondomain.Session, error) {
	if !IsAuthCallback(rawURL) {
		return sessiondomain.Session{}, ErrUnknownLink
	}
	sess, err := d.exchanger.Exchange(ctx, rawURL, d.cont)
	if errors.Is(err, service.ErrUnsolicitedCallback) {
		log.Printf("deeplink: auth callback outside a login attempt dropped")
	}
	return sess, err
}

// IsAuthCallback reports whether rawURL points at the auth callback route, in either the
// app-scheme form (gigapp://auth/callback) or the http loopback form (/auth/callback).
func IsAuthCallback(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	path := strings.TrimRight(u.Path, "/")
	if u.Scheme == "http" || u.Scheme == "https" {
		return path == "/auth/callback"
	}
	return u.Host+path == "auth/callback" || path == "/auth/callback"
}
