package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"gig-marketplace/client/internal/backend"
	"gig-marketplace/client/internal/identity/callback"
	identitydomain "gig-marketplace/client/internal/identity/domain"
	"gig-marketplace/client/internal/platform/errkind"
	"gig-marketplace/client/internal/platform/reqctx"
	sessiondomain "gig-marketplace/client/internal/session/domain"
	"gig-marketplace/client/internal/telemetry"
	telemetrydomain "gig-marketplace/client/internal/telemetry/domain"
)

// Sentinel errors for the login guard. Neither changes session state.
var (
	ErrUnsolicitedCallback = errors.New("identity: callback received outside a login attempt")
	ErrLoginInProgress     = errors.New("identity: a login exchange is already running")
	ErrInvalidCredentials  = errors.New("identity: email and password are required")
)

const (
	eventSource = "identity"
	meterName   = "gig-marketplace/client/identity"
)

// Provider exchanges the callback token pair for the external identity.
type Provider interface {
	Exchange(ctx context.Context, pair identitydomain.TokenPair) (*identitydomain.ExternalIdentity, error)
}

// Backend is the subset of the REST client used for login.
type Backend interface {
	IdentityExchange(ctx context.Context, in backend.IdentityExchangeRequest) (*backend.AuthResponse, error)
	PasswordLogin(ctx context.Context, email, password string) (*backend.AuthResponse, error)
}

// SessionStore is the subset of the session store used for login and logout.
type SessionStore interface {
	GetState() sessiondomain.Session
	SetAuth(ctx context.Context, token string, user *sessiondomain.UserProfile) error
	ClearAuth(ctx context.Context)
}

// Continuation runs after the session is stored and before the login call returns.
// Navigation uses it to decide the first screen.
type Continuation func(ctx context.Context, s sessiondomain.Session) error

type guardState int

const (
	guardIdle guardState = iota
	guardAwaiting
	guardExchanging
)

// ExchangeClient turns a provider callback (or email/password) into an application session.
// At most one exchange runs at a time; callbacks that arrive when no login was started are dropped.
type ExchangeClient struct {
	store    SessionStore
	provider Provider
	backend  Backend
	emitter  telemetry.EventEmitter
	attempts metric.Int64Counter

	mu      sync.Mutex
	state   guardState
	attempt string
}

// NewExchangeClient returns an ExchangeClient. emitter may be nil.
func NewExchangeClient(store SessionStore, provider Provider, be Backend, emitter telemetry.EventEmitter) *ExchangeClient {
	counter, err := otel.Meter(meterName).Int64Counter("client.login.attempts",
		metric.WithDescription("Login attempts by method and outcome"))
	if err != nil {
		log.Printf("identity: login counter unavailable: %v", err)
		counter = noop.Int64Counter{}
	}
	return &ExchangeClient{
		store:    store,
		provider: provider,
		backend:  be,
		emitter:  emitter,
		attempts: counter,
	}
}

// BeginLogin marks a user-initiated OAuth login as started. Call it before opening the provider
// flow. Calling it again while awaiting starts a new attempt; it fails while an exchange runs.
func (c *ExchangeClient) BeginLogin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == guardExchanging {
		return ErrLoginInProgress
	}
	c.state = guardAwaiting
	c.attempt = uuid.NewString()
	return nil
}

// CancelLogin abandons an awaited login; later callbacks are dropped. A running exchange
// cannot be cancelled and is unaffected.
func (c *ExchangeClient) CancelLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == guardAwaiting {
		c.state = guardIdle
		c.attempt = ""
	}
}

// LoginActive reports whether a login is awaiting its callback or exchanging.
func (c *ExchangeClient) LoginActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != guardIdle
}

// Exchange converts callbackURL into a session: parse the token pair, establish the provider
// session, call the backend identity exchange, store the session, then await cont.
// Callbacks arriving when no login is awaited return ErrUnsolicitedCallback without side effects.
// Failures are terminal for the attempt; the guard returns to idle and nothing is retried.
func (c *ExchangeClient) Exchange(ctx context.Context, callbackURL string, cont Continuation) (sessiondomain.Session, error) {
	attempt, ok := c.claim()
	if !ok {
		log.Printf("identity: dropping unsolicited callback")
		telemetry.EmitAsync(c.emitter, ctx, telemetry.NewEvent(telemetrydomain.EventCallbackIgnored, eventSource, "", nil))
		return sessiondomain.Session{}, ErrUnsolicitedCallback
	}
	defer c.release()
	ctx = reqctx.WithAttemptID(ctx, attempt)

	resp, err := c.oauth(ctx, callbackURL)
	if err != nil {
		c.failed(ctx, "oauth", err)
		return sessiondomain.Session{}, err
	}
	return c.complete(ctx, "oauth", resp, cont)
}

func (c *ExchangeClient) oauth(ctx context.Context, callbackURL string) (*backend.AuthResponse, error) {
	pair, err := callback.Parse(callbackURL)
	if err != nil {
		return nil, err
	}
	ident, err := c.provider.Exchange(ctx, pair)
	if err != nil {
		return nil, err
	}
	return c.backend.IdentityExchange(ctx, backend.IdentityExchangeRequest{
		Email:       ident.Email,
		ExternalID:  ident.ExternalID,
		DisplayName: ident.DisplayName,
	})
}

// PasswordLogin signs in without OAuth. It shares the single-exchange guard and the continuation
// contract with Exchange, and returns ErrLoginInProgress while an OAuth login is awaited or running.
func (c *ExchangeClient) PasswordLogin(ctx context.Context, email, password string, cont Continuation) (sessiondomain.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return sessiondomain.Session{}, ErrInvalidCredentials
	}
	c.mu.Lock()
	if c.state != guardIdle {
		c.mu.Unlock()
		return sessiondomain.Session{}, ErrLoginInProgress
	}
	c.state = guardExchanging
	c.mu.Unlock()
	defer c.release()

	ctx, _ = reqctx.NewAttempt(ctx)
	resp, err := c.backend.PasswordLogin(ctx, email, password)
	if err != nil {
		c.failed(ctx, "password", err)
		return sessiondomain.Session{}, err
	}
	return c.complete(ctx, "password", resp, cont)
}

// Logout clears the session.
func (c *ExchangeClient) Logout(ctx context.Context) {
	c.store.ClearAuth(ctx)
}

func (c *ExchangeClient) complete(ctx context.Context, method string, resp *backend.AuthResponse, cont Continuation) (sessiondomain.Session, error) {
	if err := c.store.SetAuth(ctx, resp.Token, resp.User); err != nil {
		err = errkind.E(errkind.BackendRejected, "identity.complete", err)
		c.failed(ctx, method, err)
		return sessiondomain.Session{}, err
	}
	sess := c.store.GetState()
	var userID string
	if sess.User != nil {
		userID = sess.User.ID
	}
	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method), attribute.String("outcome", "success")))
	telemetry.EmitAsync(c.emitter, ctx, telemetry.NewEvent(telemetrydomain.EventLoginSucceeded, eventSource, userID,
		map[string]string{"method": method}))

	if cont != nil {
		if err := cont(ctx, sess); err != nil {
			return sess, fmt.Errorf("identity: after login: %w", err)
		}
	}
	return sess, nil
}

func (c *ExchangeClient) failed(ctx context.Context, method string, err error) {
	kind := errkind.KindOf(err)
	log.Printf("identity: %s login failed (%s): %v", method, kind, err)
	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method), attribute.String("outcome", string(kind))))
	telemetry.EmitAsync(c.emitter, ctx, telemetry.NewEvent(telemetrydomain.EventLoginFailed, eventSource, "",
		map[string]string{"method": method, "kind": string(kind)}))
}

// claim moves awaiting to exchanging and returns the attempt ID; false if no login is awaited.
func (c *ExchangeClient) claim() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != guardAwaiting {
		return "", false
	}
	c.state = guardExchanging
	return c.attempt, true
}

func (c *ExchangeClient) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = guardIdle
	c.attempt = ""
}
