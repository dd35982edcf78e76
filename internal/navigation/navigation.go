// Package navigation picks the next screen from the session and the active-work decision.
// Login completion and the home-surface re-check both go through ResolveNextScreen.
package navigation

import (
	"context"
	"log"

	sessiondomain "gig-marketplace/client/internal/session/domain"
	"gig-marketplace/client/internal/telemetry"
	telemetrydomain "gig-marketplace/client/internal/telemetry/domain"
	workdomain "gig-marketplace/client/internal/work/domain"
)

// Screen is a routing destination.
type Screen string

const (
	ScreenLogin           Screen = "login"
	ScreenTerms           Screen = "terms"
	ScreenCompleteProfile Screen = "complete_profile"
	ScreenHome            Screen = "home"
	ScreenRating          Screen = "rating"
	ScreenResumePrompt    Screen = "resume_prompt"
)

// Trigger names the entry point that asked for routing.
type Trigger string

const (
	TriggerLogin     Trigger = "login"
	TriggerHomeFocus Trigger = "home_focus"
	TriggerStartup   Trigger = "startup"
)

// Target is the next-screen directive. Rating and Resume carry the payload for those screens.
type Target struct {
	Screen Screen
	Rating *workdomain.RateCounterparty
	Resume *workdomain.ResumeInProgressWork
}

// Mandatory reports whether the user must complete the target before anything else.
// Only Rating is mandatory; the resume prompt can be dismissed.
func (t Target) Mandatory() bool { return t.Screen == ScreenRating }

// WorkResolver returns the active-work routing decision for a signed-in session.
type WorkResolver interface {
	Resolve(ctx context.Context, session sessiondomain.Session) (workdomain.RoutingDecision, error)
}

// Navigator shows a target. Implementations must not block on user input.
type Navigator interface {
	Navigate(ctx context.Context, target Target, trigger Trigger)
}

// Resolver is the NavigationResolver.
type Resolver struct {
	work      WorkResolver
	navigator Navigator
	emitter   telemetry.EventEmitter
}

// New returns a Resolver. navigator and emitter may be nil.
func New(work WorkResolver, navigator Navigator, emitter telemetry.EventEmitter) *Resolver {
	return &Resolver{work: work, navigator: navigator, emitter: emitter}
}

// ResolveNextScreen returns, in order of precedence: Login when signed out, Rating or
// ResumePrompt from the active-work decision, Terms, CompleteProfile, then Home.
// It is idempotent for unchanged backing data.
func (r *Resolver) ResolveNextScreen(ctx context.Context, session sessiondomain.Session) Target {
	if !session.Authenticated() || session.User == nil {
		return Target{Screen: ScreenLogin}
	}

	d, err := r.work.Resolve(ctx, session)
	if err != nil {
		// Unreachable with a token; treat as signed out rather than guessing.
		log.Printf("navigation: work resolver: %v", err)
		return Target{Screen: ScreenLogin}
	}
	switch d.Kind {
	case workdomain.KindRateCounterparty:
		if d.Rating != nil {
			p := *d.Rating
			return Target{Screen: ScreenRating, Rating: &p}
		}
	case workdomain.KindResumeInProgressWork:
		if d.Resume != nil {
			p := *d.Resume
			return Target{Screen: ScreenResumePrompt, Resume: &p}
		}
	}

	switch {
	case !session.User.AcceptTerms:
		return Target{Screen: ScreenTerms}
	case !session.User.ProfileCompleted:
		return Target{Screen: ScreenCompleteProfile}
	default:
		return Target{Screen: ScreenHome}
	}
}

// AfterLogin returns the continuation passed to the login flow: it resolves the first screen
// for the new session and navigates there before the login call returns.
func (r *Resolver) AfterLogin() func(ctx context.Context, session sessiondomain.Session) error {
	return func(ctx context.Context, session sessiondomain.Session) error {
		r.route(ctx, session, TriggerLogin, true)
		return nil
	}
}

// OnHomeFocus re-checks routing when the home surface is shown (including app resume).
// It navigates away only when the target is not Home.
func (r *Resolver) OnHomeFocus(ctx context.Context, session sessiondomain.Session) Target {
	return r.route(ctx, session, TriggerHomeFocus, false)
}

// OnReady resolves the first screen once startup finishes.
func (r *Resolver) OnReady(ctx context.Context, session sessiondomain.Session) Target {
	return r.route(ctx, session, TriggerStartup, true)
}

func (r *Resolver) route(ctx context.Context, session sessiondomain.Session, trigger Trigger, always bool) Target {
	target := r.ResolveNextScreen(ctx, session)
	var userID string
	if session.User != nil {
		userID = session.User.ID
	}
	telemetry.EmitAsync(r.emitter, ctx, telemetry.NewEvent(telemetrydomain.EventRoutingDecided, "navigation", userID,
		map[string]string{"screen": string(target.Screen), "trigger": string(trigger)}))
	if r.navigator != nil && (always || target.Screen != ScreenHome) {
		r.navigator.Navigate(ctx, target, trigger)
	}
	return target
}
