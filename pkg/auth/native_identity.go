package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

// nonceSize is the number of random bytes in a sign-in nonce.
const nonceSize = 32

// IdentityCredential is returned by the platform identity dialog. FullName
// and Email are only present on the first authorization of the app.
type IdentityCredential struct {
	IdentityToken string
	FullName      string
	Email         string
}

// IdentityAttestor is the platform's native identity dialog.
type IdentityAttestor interface {
	// Available reports whether the dialog can be shown on this device.
	Available(ctx context.Context) bool

	// Request shows the dialog. nonceDigest is embedded in the issued
	// identity token. A user dismissal returns ErrCanceled.
	Request(ctx context.Context, nonceDigest string) (*IdentityCredential, error)
}

// NativeIdentityAdapter signs in with a platform-attested identity token.
type NativeIdentityAdapter struct {
	backend  IDTokenBackend
	attestor IdentityAttestor
	provider string
	logger   *slog.Logger
}

var _ ExternalSignIn = (*NativeIdentityAdapter)(nil)

// NativeOption configures a NativeIdentityAdapter.
type NativeOption func(*NativeIdentityAdapter)

// WithNativeLogger sets the adapter logger.
func WithNativeLogger(l *slog.Logger) NativeOption {
	return func(a *NativeIdentityAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewNativeIdentityAdapter creates an adapter exchanging tokens for provider.
func NewNativeIdentityAdapter(backend IDTokenBackend, attestor IdentityAttestor, provider string, opts ...NativeOption) *NativeIdentityAdapter {
	a := &NativeIdentityAdapter{
		backend:  backend,
		attestor: attestor,
		provider: provider,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider implements ExternalSignIn.
func (a *NativeIdentityAdapter) Provider() string { return a.provider }

// SignIn implements ExternalSignIn.
func (a *NativeIdentityAdapter) SignIn(ctx context.Context) (*Session, error) {
	if !a.attestor.Available(ctx) {
		return nil, &Error{
			Kind:     KindProviderUnavailable,
			Message:  "native sign-in is not available on this device; use email and password or another provider",
			Provider: a.provider,
		}
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	digest := hashNonce(nonce)

	cred, err := a.attestor.Request(ctx, digest)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.IdentityToken == "" {
		return nil, &Error{Kind: KindTokenMissing, Message: "identity dialog returned no token", Provider: a.provider}
	}

	claims, parsed := parseIdentityClaims(cred.IdentityToken)
	if parsed && claims.Nonce != "" && claims.Nonce != digest {
		return nil, &Error{Kind: KindInvalidCredentials, Message: "identity token nonce mismatch", Provider: a.provider}
	}

	sess, err := a.backend.SignInWithIDToken(ctx, IDTokenParams{
		Provider: a.provider,
		Token:    cred.IdentityToken,
		Nonce:    nonce,
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionMissing
	}

	email := strings.TrimSpace(cred.Email)
	if email == "" {
		email = claims.Email
	}
	return a.backfill(ctx, sess, strings.TrimSpace(cred.FullName), email), nil
}

// backfill copies the name and email shared by the dialog onto the account
// when the account has none. Existing values are never overwritten and a
// failed update keeps the session as issued.
func (a *NativeIdentityAdapter) backfill(ctx context.Context, sess *Session, fullName, email string) *Session {
	var update UserUpdate
	if fullName != "" && sess.User.DisplayName() == "" {
		update.Metadata = map[string]any{MetadataFullName: fullName}
	}
	if email != "" && sess.User.Email == "" {
		update.Email = email
	}
	if update.Empty() {
		return sess
	}

	user, err := a.backend.UpdateUser(ctx, update)
	if err != nil || user == nil {
		a.logger.WarnContext(ctx, "identity backfill failed",
			logger.Provider(a.provider),
			logger.UserID(sess.User.ID),
			logger.Error(err),
		)
		return sess
	}

	next := *sess
	next.User = *user
	return &next
}

type identityClaims struct {
	Nonce string `json:"nonce"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// parseIdentityClaims reads the token payload without verifying the
// signature; the backend verifies it on exchange.
func parseIdentityClaims(token string) (identityClaims, bool) {
	var c identityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return identityClaims{}, false
	}
	return c, true
}

func newNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
