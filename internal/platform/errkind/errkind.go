// Package errkind classifies failures of the login and routing flows so callers can decide
// whether to surface them to the user or degrade silently.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind string

const (
	MalformedCallback     Kind = "malformed_callback"
	ProviderRejected      Kind = "provider_rejected"
	BackendRejected       Kind = "backend_rejected"
	Unauthenticated       Kind = "unauthenticated"
	TransientQueryFailure Kind = "transient_query_failure"
)

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrMalformedCallback     = &Error{Kind: MalformedCallback}
	ErrProviderRejected      = &Error{Kind: ProviderRejected}
	ErrBackendRejected       = &Error{Kind: BackendRejected}
	ErrUnauthenticated       = &Error{Kind: Unauthenticated}
	ErrTransientQueryFailure = &Error{Kind: TransientQueryFailure}
)

// Error carries a Kind, the operation that failed, and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E returns an *Error for kind. op names the failing operation (e.g. "identity.exchange").
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Terminal reports whether kind ends the in-flight login attempt and must be shown to the user.
// Routing-side kinds fail open and are never shown.
func Terminal(kind Kind) bool {
	switch kind {
	case MalformedCallback, ProviderRejected, BackendRejected:
		return true
	}
	return false
}

// UserMessage returns the text shown in the login failure modal for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case MalformedCallback:
		return "The sign-in response was incomplete. Please try signing in again."
	case ProviderRejected:
		if msg := userFacing(err); msg != "" {
			return msg
		}
		return "Your sign-in provider could not verify your account. Please try again."
	case BackendRejected:
		if msg := userFacing(err); msg != "" {
			return msg
		}
		return "We could not sign you in. Your account may be disabled."
	default:
		return "Something went wrong. Please try again."
	}
}

// userFacing returns the text of the first cause under err's *Error that carries a UserFacing message.
func userFacing(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	var msg interface{ UserFacing() string }
	if errors.As(e.Err, &msg) {
		return msg.UserFacing()
	}
	return ""
}
