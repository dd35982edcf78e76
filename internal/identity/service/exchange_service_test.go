package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gig-marketplace/client/internal/backend"
	identitydomain "gig-marketplace/client/internal/identity/domain"
	"gig-marketplace/client/internal/platform/errkind"
	"gig-marketplace/client/internal/platform/reqctx"
	sessiondomain "gig-marketplace/client/internal/session/domain"
	"gig-marketplace/client/internal/session/repository"
	"gig-marketplace/client/internal/session/store"
	telemetrydomain "gig-marketplace/client/internal/telemetry/domain"
)

const goodCallback = "gigapp://auth/callback#access_token=a1&refresh_token=r1"

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	attempts []string
	err      error
	block    chan struct{} // when set, Exchange waits on it
	entered  chan struct{}
}

func (p *fakeProvider) Exchange(ctx context.Context, pair identitydomain.TokenPair) (*identitydomain.ExternalIdentity, error) {
	p.mu.Lock()
	p.calls++
	id, _ := reqctx.AttemptID(ctx)
	p.attempts = append(p.attempts, id)
	block, entered := p.block, p.entered
	p.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if p.err != nil {
		return nil, errkind.E(errkind.ProviderRejected, "fake", p.err)
	}
	return &identitydomain.ExternalIdentity{ExternalID: "ext-1", Email: "ana@example.com", DisplayName: "Ana"}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeBackend struct {
	mu        sync.Mutex
	exchanges []backend.IdentityExchangeRequest
	passwords []string
	err       error
	user      *sessiondomain.UserProfile
}

func (b *fakeBackend) IdentityExchange(ctx context.Context, in backend.IdentityExchangeRequest) (*backend.AuthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchanges = append(b.exchanges, in)
	return b.reply()
}

func (b *fakeBackend) PasswordLogin(ctx context.Context, email, password string) (*backend.AuthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passwords = append(b.passwords, email)
	return b.reply()
}

func (b *fakeBackend) reply() (*backend.AuthResponse, error) {
	if b.err != nil {
		return nil, errkind.E(errkind.BackendRejected, "fake", b.err)
	}
	u := b.user
	if u == nil {
		u = &sessiondomain.UserProfile{ID: "u1", Email: "ana@example.com", AcceptTerms: true}
	}
	return &backend.AuthResponse{Token: "app-token", User: u}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*telemetrydomain.Event
}

func (e *recordingEmitter) Emit(ctx context.Context, ev *telemetrydomain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func newClient(p *fakeProvider, b *fakeBackend) (*ExchangeClient, *store.Store) {
	st := store.New(repository.NewMemoryRepository(), nil)
	return NewExchangeClient(st, p, b, &recordingEmitter{}), st
}

func TestExchange_UnsolicitedCallbackDropped(t *testing.T) {
	p, b := &fakeProvider{}, &fakeBackend{}
	c, st := newClient(p, b)

	contCalled := false
	_, err := c.Exchange(context.Background(), goodCallback, func(context.Context, sessiondomain.Session) error {
		contCalled = true
		return nil
	})
	if !errors.Is(err, ErrUnsolicitedCallback) {
		t.Fatalf("err = %v, want ErrUnsolicitedCallback", err)
	}
	if p.callCount() != 0 || contCalled {
		t.Error("unsolicited callback must not reach the provider or the continuation")
	}
	if st.GetState().Authenticated() {
		t.Error("session must stay signed out")
	}
}

func TestExchange_Success(t *testing.T) {
	p, b := &fakeProvider{}, &fakeBackend{}
	c, st := newClient(p, b)
	if err := c.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	if !c.LoginActive() {
		t.Error("LoginActive should be true after BeginLogin")
	}

	var seenInCont sessiondomain.Session
	contDone := false
	sess, err := c.Exchange(context.Background(), goodCallback, func(ctx context.Context, s sessiondomain.Session) error {
		seenInCont = st.GetState()
		contDone = true
		return nil
	})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !contDone {
		t.Fatal("continuation must complete before Exchange returns")
	}
	if seenInCont.Token != "app-token" || seenInCont.User == nil {
		t.Errorf("store inside continuation = %+v, want session already set", seenInCont)
	}
	if sess.Token != "app-token" || sess.User.ID != "u1" {
		t.Errorf("session = %+v", sess)
	}
	if len(b.exchanges) != 1 || b.exchanges[0] != (backend.IdentityExchangeRequest{Email: "ana@example.com", ExternalID: "ext-1", DisplayName: "Ana"}) {
		t.Errorf("backend exchanges = %+v", b.exchanges)
	}
	if p.attempts[0] == "" {
		t.Error("provider call should carry the login attempt ID")
	}
	if c.LoginActive() {
		t.Error("guard should be idle after the exchange")
	}

	// A duplicate delivery of the same callback is now unsolicited.
	if _, err := c.Exchange(context.Background(), goodCallback, nil); !errors.Is(err, ErrUnsolicitedCallback) {
		t.Errorf("duplicate callback: err = %v, want ErrUnsolicitedCallback", err)
	}
	if p.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", p.callCount())
	}
}

func TestExchange_ConcurrentDuplicateIgnored(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{}), entered: make(chan struct{})}
	c, _ := newClient(p, &fakeBackend{})
	_ = c.BeginLogin()

	done := make(chan error, 1)
	go func() {
		_, err := c.Exchange(context.Background(), goodCallback, nil)
		done <- err
	}()
	<-p.entered

	if _, err := c.Exchange(context.Background(), goodCallback, nil); !errors.Is(err, ErrUnsolicitedCallback) {
		t.Errorf("second callback: err = %v, want ErrUnsolicitedCallback", err)
	}
	if err := c.BeginLogin(); !errors.Is(err, ErrLoginInProgress) {
		t.Errorf("BeginLogin during exchange: err = %v, want ErrLoginInProgress", err)
	}
	c.CancelLogin() // no effect on a running exchange

	close(p.block)
	if err := <-done; err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if p.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", p.callCount())
	}
}

func TestExchange_TerminalFailures(t *testing.T) {
	testCases := []struct {
		name        string
		callback    string
		providerErr error
		backendErr  error
		wantKind    errkind.Kind
		wantBackend int
	}{
		{name: "malformed", callback: "gigapp://auth/callback", wantKind: errkind.MalformedCallback},
		{name: "provider rejected", callback: goodCallback, providerErr: errors.New("invalid JWT"), wantKind: errkind.ProviderRejected},
		{name: "backend rejected", callback: goodCallback, backendErr: errors.New("account disabled"), wantKind: errkind.BackendRejected, wantBackend: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, b := &fakeProvider{err: tc.providerErr}, &fakeBackend{err: tc.backendErr}
			c, st := newClient(p, b)
			_ = c.BeginLogin()

			contCalled := false
			_, err := c.Exchange(context.Background(), tc.callback, func(context.Context, sessiondomain.Session) error {
				contCalled = true
				return nil
			})
			if got := errkind.KindOf(err); got != tc.wantKind {
				t.Fatalf("kind = %q, want %q (err %v)", got, tc.wantKind, err)
			}
			if !errkind.Terminal(errkind.KindOf(err)) {
				t.Error("login failures must be terminal")
			}
			if contCalled {
				t.Error("continuation must not run on failure")
			}
			if st.GetState().Authenticated() {
				t.Error("session must stay signed out")
			}
			if len(b.exchanges) != tc.wantBackend {
				t.Errorf("backend calls = %d, want %d (no retry)", len(b.exchanges), tc.wantBackend)
			}
			if c.LoginActive() {
				t.Error("guard should return to idle after a failure")
			}
		})
	}
}

func TestExchange_ContinuationError(t *testing.T) {
	c, st := newClient(&fakeProvider{}, &fakeBackend{})
	_ = c.BeginLogin()
	routeErr := errors.New("routing exploded")
	sess, err := c.Exchange(context.Background(), goodCallback, func(context.Context, sessiondomain.Session) error {
		return routeErr
	})
	if !errors.Is(err, routeErr) {
		t.Errorf("err = %v, want continuation error", err)
	}
	if !sess.Authenticated() || !st.GetState().Authenticated() {
		t.Error("session stays stored when the continuation fails")
	}
}

func TestCancelLogin_DropsLaterCallback(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newClient(p, &fakeBackend{})
	_ = c.BeginLogin()
	c.CancelLogin()
	if c.LoginActive() {
		t.Error("LoginActive should be false after CancelLogin")
	}
	if _, err := c.Exchange(context.Background(), goodCallback, nil); !errors.Is(err, ErrUnsolicitedCallback) {
		t.Errorf("err = %v, want ErrUnsolicitedCallback", err)
	}
	if p.callCount() != 0 {
		t.Error("provider must not be called after cancel")
	}
}

func TestPasswordLogin(t *testing.T) {
	b := &fakeBackend{user: &sessiondomain.UserProfile{ID: "u2"}}
	c, st := newClient(&fakeProvider{}, b)

	if _, err := c.PasswordLogin(context.Background(), " ", "pw", nil); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("blank email: err = %v, want ErrInvalidCredentials", err)
	}

	var contSession sessiondomain.Session
	sess, err := c.PasswordLogin(context.Background(), " Ana@Example.com ", "pw", func(ctx context.Context, s sessiondomain.Session) error {
		contSession = s
		return nil
	})
	if err != nil {
		t.Fatalf("PasswordLogin: %v", err)
	}
	if sess.User.ID != "u2" || contSession.User.ID != "u2" || st.Token() != "app-token" {
		t.Errorf("session = %+v, continuation saw %+v", sess, contSession)
	}
	if b.passwords[0] != "ana@example.com" {
		t.Errorf("email sent = %q, want normalized", b.passwords[0])
	}
}

func TestPasswordLogin_RefusedWhileOAuthAwaited(t *testing.T) {
	p, b := &fakeProvider{}, &fakeBackend{}
	c, st := newClient(p, b)
	if err := c.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}

	if _, err := c.PasswordLogin(context.Background(), "a@example.com", "pw", nil); !errors.Is(err, ErrLoginInProgress) {
		t.Fatalf("err = %v, want ErrLoginInProgress", err)
	}
	if len(b.passwords) != 0 || st.GetState().Authenticated() {
		t.Error("refused password login must not reach the backend or touch the session")
	}
	if !c.LoginActive() {
		t.Fatal("awaited OAuth login should still be active")
	}
	if _, err := c.Exchange(context.Background(), goodCallback, nil); err != nil {
		t.Fatalf("Exchange after refused password login: %v", err)
	}
	if p.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", p.callCount())
	}
}

func TestPasswordLogin_Rejected(t *testing.T) {
	c, st := newClient(&fakeProvider{}, &fakeBackend{err: errors.New("invalid credentials")})
	_, err := c.PasswordLogin(context.Background(), "a@example.com", "bad", nil)
	if !errors.Is(err, errkind.ErrBackendRejected) {
		t.Errorf("err = %v, want backend_rejected", err)
	}
	if st.GetState().Authenticated() {
		t.Error("session must stay signed out")
	}
}

func TestLogout(t *testing.T) {
	c, st := newClient(&fakeProvider{}, &fakeBackend{})
	_ = c.BeginLogin()
	if _, err := c.Exchange(context.Background(), goodCallback, nil); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	c.Logout(context.Background())
	if s := st.GetState(); s.Token != "" || s.User != nil {
		t.Errorf("state after logout = %+v", s)
	}
}
