package auth

import "context"

// EventType names a backend session change.
type EventType string

const (
	EventInitialSession   EventType = "initial_session"
	EventSignedIn         EventType = "signed_in"
	EventSignedOut        EventType = "signed_out"
	EventTokenRefreshed   EventType = "token_refreshed"
	EventUserUpdated      EventType = "user_updated"
	EventPasswordRecovery EventType = "password_recovery"
)

// SessionEvent is emitted by a Backend whenever its session changes.
// Session is nil for EventSignedOut.
type SessionEvent struct {
	Type    EventType
	Session *Session
}

// OAuthBackend is the part of the backend used by browser-redirect sign-in.
type OAuthBackend interface {
	// OAuthURL returns the provider authorization URL that redirects back to
	// redirectURL.
	OAuthURL(ctx context.Context, provider, redirectURL string) (string, error)

	// SetSession installs a session from tokens received out of band.
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
}

// IDTokenBackend is the part of the backend used by native identity sign-in.
type IDTokenBackend interface {
	SignInWithIDToken(ctx context.Context, params IDTokenParams) (*Session, error)
	UpdateUser(ctx context.Context, update UserUpdate) (*User, error)
}

// Backend is the remote auth service. Implementations return the package
// sentinels (ErrInvalidCredentials, ErrSessionMissing, ...) where they apply;
// anything else is treated as a network failure.
type Backend interface {
	OAuthBackend
	IDTokenBackend

	// GetSession returns the persisted session, or nil when there is none.
	GetSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignUp registers an account. The returned session is nil when the
	// backend requires email confirmation first.
	SignUp(ctx context.Context, params SignUpParams) (*Session, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	UpdatePassword(ctx context.Context, newPassword string) error

	// OnSessionChange registers fn for session events and returns a function
	// that releases the registration.
	OnSessionChange(fn func(SessionEvent)) (unsubscribe func())
}

// ExternalSignIn is a third-party identity provider flow that ends in a
// backend session.
type ExternalSignIn interface {
	Provider() string
	SignIn(ctx context.Context) (*Session, error)
}
