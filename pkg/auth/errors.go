package auth

import (
	"context"
	"errors"
)

// ErrorKind classifies a failed operation. The navigation and UI layers
// switch on it to pick a message.
type ErrorKind string

const (
	KindInvalidCredentials  ErrorKind = "invalid-credentials"
	KindNetwork             ErrorKind = "network"
	KindProviderUnavailable ErrorKind = "provider-unavailable"
	KindTokenMissing        ErrorKind = "token-missing"
	KindCanceled            ErrorKind = "canceled"
	KindSessionMissing      ErrorKind = "session-missing"
	KindProfileWriteFailed  ErrorKind = "profile-write-failed"
	KindProfileReadFailed   ErrorKind = "profile-read-failed"
)

// Error is the error returned by every Store operation and published as
// State.Error.
type Error struct {
	Kind     ErrorKind
	Message  string
	Provider string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of message or provider.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels, one per kind. Backends return them (wrapped or not) so the store
// can classify failures.
var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid login credentials"}
	ErrNetwork             = &Error{Kind: KindNetwork, Message: "auth backend unreachable"}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable, Message: "identity provider unavailable"}
	ErrTokenMissing        = &Error{Kind: KindTokenMissing, Message: "callback carried no access token"}
	ErrCanceled            = &Error{Kind: KindCanceled, Message: "sign-in canceled"}
	ErrSessionMissing      = &Error{Kind: KindSessionMissing, Message: "no active session"}
	ErrProfileWriteFailed  = &Error{Kind: KindProfileWriteFailed, Message: "profile could not be saved"}
	ErrProfileReadFailed   = &Error{Kind: KindProfileReadFailed, Message: "profile could not be read"}
)

// newError builds an *Error of kind wrapping cause.
func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// classify maps any error onto the taxonomy. Errors already carrying a kind
// keep it; context cancellation becomes canceled; the rest is network.
func classify(err error, provider string) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		out := *ae
		if out.Err == nil && err != error(ae) {
			out.Err = err
		}
		if out.Provider == "" {
			out.Provider = provider
		}
		return &out
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Message: ErrCanceled.Message, Provider: provider, Err: err}
	}
	return &Error{Kind: KindNetwork, Message: err.Error(), Provider: provider, Err: err}
}

// IsCanceled reports whether err is a user or context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
