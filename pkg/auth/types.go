package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Metadata keys read from User.Metadata.
const (
	MetadataFullName = "full_name"
	MetadataName     = "name"
)

// User is the backend's view of the signed-in account.
type User struct {
	ID       uuid.UUID
	Email    string
	Metadata map[string]any
}

// DisplayName returns the full_name metadata value, falling back to name.
func (u User) DisplayName() string {
	for _, key := range []string{MetadataFullName, MetadataName} {
		if v, ok := u.Metadata[key].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Session is a backend session. It is replaced wholesale on every change and
// never patched in place.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Token exposes the session credentials as an oauth2 token, for HTTP
// clients that authenticate with the session's bearer token.
func (s *Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SignUpParams are the inputs of an email/password registration.
type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]any
}

// IDTokenParams exchange a provider-issued identity token for a session.
// Nonce is the raw nonce whose digest the provider signed.
type IDTokenParams struct {
	Provider string
	Token    string
	Nonce    string
}

// UserUpdate changes account fields. Zero values are left untouched.
type UserUpdate struct {
	Email    string
	Metadata map[string]any
}

// Empty reports whether the update would change nothing.
func (u UserUpdate) Empty() bool {
	return u.Email == "" && len(u.Metadata) == 0
}

// State is an immutable snapshot of the store, published to subscribers on
// every change. Loading is set from NewStore until Start has restored the
// persisted session, and while any operation is in flight.
type State struct {
	Phase                  Phase
	Session                *Session
	User                   *User
	Loading                bool
	Error                  *Error
	NeedsProfileCompletion bool
	RecoveryPending        bool
}

// Authenticated reports whether the snapshot holds a session.
func (s State) Authenticated() bool {
	return s.Session != nil
}
