// Package startup runs the one-time launch sequence: native splash, wait for the persisted
// session, anti-flicker delay, in-app splash, ready.
package startup

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	sessiondomain "gig-marketplace/client/internal/session/domain"
	"gig-marketplace/client/internal/session/store"
	"gig-marketplace/client/internal/telemetry"
	telemetrydomain "gig-marketplace/client/internal/telemetry/domain"
)

// State is a step of the launch sequence.
type State string

const (
	StateIdle                  State = "idle"
	StateNativeSplash          State = "native_splash"
	StateWaitingForRehydration State = "waiting_for_rehydration"
	StateAntiFlickerDelay      State = "anti_flicker_delay"
	StateInAppSplash           State = "in_app_splash"
	StateReady                 State = "ready"
)

// Reasons the in-app splash ended.
const (
	SettledByProgress = "progress"
	SettledByTimeout  = "timeout"
)

var ErrAlreadyStarted = errors.New("startup: sequence already ran")

// NativeSplash is the platform launch screen.
type NativeSplash interface {
	// PreventAutoHide keeps the platform from dismissing the splash on its own.
	PreventAutoHide() error
	Hide() error
}

// Splash is the in-app splash view. SetProgress receives 0..100; Close unmounts it.
type Splash interface {
	SetProgress(pct int)
	Close()
}

// SessionSource is the read side of the session store.
type SessionSource interface {
	GetState() sessiondomain.Session
	Subscribe(l store.Listener) (unsubscribe func())
}

// Options holds the sequence timings.
type Options struct {
	AntiFlicker   time.Duration // delay after rehydration before hiding the native splash
	SafetyTimeout time.Duration // upper bound on the in-app splash
	// RehydrationTimeout bounds the wait for the persisted session. Zero waits indefinitely.
	RehydrationTimeout time.Duration
}

// DefaultOptions returns the stock timings: 200ms anti-flicker, 10s safety timer, no rehydration bound.
func DefaultOptions() Options {
	return Options{AntiFlicker: 200 * time.Millisecond, SafetyTimeout: 10 * time.Second}
}

// Sequencer runs the launch sequence once per process.
type Sequencer struct {
	session  SessionSource
	native   NativeSplash
	splash   Splash
	progress Progress
	opts     Options
	emitter  telemetry.EventEmitter

	// afterFunc schedules f after d and returns a stop function. Swapped in tests.
	afterFunc func(d time.Duration, f func()) (stop func() bool)

	started atomic.Bool
	ready   chan struct{}

	mu        sync.Mutex
	state     State
	observers []func(State)
	settledBy string
}

// New returns a Sequencer. native and splash may be nil (headless); progress defaults to a
// ProgressDriver with its default cadence.
func New(session SessionSource, native NativeSplash, splash Splash, progress Progress, opts Options, emitter telemetry.EventEmitter) *Sequencer {
	if progress == nil {
		progress = ProgressDriver{}
	}
	if opts.SafetyTimeout <= 0 {
		opts.SafetyTimeout = DefaultOptions().SafetyTimeout
	}
	if opts.AntiFlicker < 0 {
		opts.AntiFlicker = 0
	}
	return &Sequencer{
		session:  session,
		native:   native,
		splash:   splash,
		progress: progress,
		opts:     opts,
		emitter:  emitter,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		ready: make(chan struct{}),
		state: StateIdle,
	}
}

// OnTransition registers fn to be called with each new state. Register before Run.
func (s *Sequencer) OnTransition(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed when the sequence reaches StateReady.
func (s *Sequencer) Ready() <-chan struct{} { return s.ready }

// SettledBy reports what ended the in-app splash: SettledByProgress or SettledByTimeout.
func (s *Sequencer) SettledBy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settledBy
}

// Run executes the sequence and returns once Ready, or with ctx's error if cancelled first.
// A second call returns ErrAlreadyStarted.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.transition(StateNativeSplash)
	if s.native != nil {
		if err := s.native.PreventAutoHide(); err != nil {
			log.Printf("startup: prevent native splash auto-hide: %v", err)
		}
	}

	s.transition(StateWaitingForRehydration)
	if err := s.waitRehydrated(ctx); err != nil {
		return err
	}

	s.transition(StateAntiFlickerDelay)
	if err := sleep(ctx, s.opts.AntiFlicker); err != nil {
		return err
	}
	if s.native != nil {
		if err := s.native.Hide(); err != nil {
			log.Printf("startup: hide native splash: %v", err)
		}
	}

	s.transition(StateInAppSplash)
	reason, err := s.runSplash(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.settledBy = reason
	s.mu.Unlock()
	s.transition(StateReady)
	close(s.ready)
	telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(telemetrydomain.EventStartupReady, "startup", "",
		map[string]string{"settled_by": reason}))
	return nil
}

// waitRehydrated blocks until the store reports Rehydrated. It subscribes before checking the
// current state so a rehydration finishing in between is not missed.
func (s *Sequencer) waitRehydrated(ctx context.Context) error {
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := s.session.Subscribe(func(st sessiondomain.Session) {
		if st.Rehydrated {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()
	if s.session.GetState().Rehydrated {
		return nil
	}

	var timeout <-chan time.Time
	if s.opts.RehydrationTimeout > 0 {
		t := time.NewTimer(s.opts.RehydrationTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-done:
		return nil
	case <-timeout:
		log.Printf("startup: session not rehydrated after %v, continuing signed out", s.opts.RehydrationTimeout)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runSplash races the progress indicator against the safety timer. Whichever settles the
// guard first wins; the other becomes a no-op.
func (s *Sequencer) runSplash(ctx context.Context) (string, error) {
	var settled atomic.Bool
	won := make(chan string, 1)
	settle := func(reason string) {
		if settled.CompareAndSwap(false, true) {
			won <- reason
		}
	}

	splashCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopTimer := s.afterFunc(s.opts.SafetyTimeout, func() { settle(SettledByTimeout) })
	defer stopTimer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.progress.Run(splashCtx, func(pct int) {
			if s.splash != nil && !settled.Load() {
				s.splash.SetProgress(pct)
			}
		}, func() { settle(SettledByProgress) })
	}()

	var reason string
	select {
	case reason = <-won:
	case <-ctx.Done():
		settle("cancelled")
		cancel()
		wg.Wait()
		s.closeSplash()
		return "", ctx.Err()
	}
	cancel()
	wg.Wait()
	s.closeSplash()
	return reason, nil
}

func (s *Sequencer) closeSplash() {
	if s.splash != nil {
		s.splash.Close()
	}
}

func (s *Sequencer) transition(next State) {
	s.mu.Lock()
	s.state = next
	observers := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(next)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
