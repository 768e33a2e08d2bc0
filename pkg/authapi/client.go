package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/auth"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

// refreshLeeway refreshes a session this long before it expires.
const refreshLeeway = 30 * time.Second

// Client talks to a GoTrue-compatible auth service and keeps the current
// session in memory.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time

	persist   SessionStore
	mu        sync.Mutex
	session   *auth.Session
	restored  bool
	listeners map[uint64]func(auth.SessionEvent)
	next      uint64
}

var _ auth.Backend = (*Client)(nil)

// SessionStore persists the current session between process runs.
type SessionStore interface {
	// LoadSession returns nil when nothing is stored.
	LoadSession(ctx context.Context) (*auth.Session, error)
	// SaveSession stores sess; nil removes the stored session.
	SaveSession(ctx context.Context, sess *auth.Session) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithSession seeds the client with a session obtained elsewhere.
func WithSession(s *auth.Session) Option {
	return func(cl *Client) {
		cl.session = s
	}
}

// WithPersistence restores the session from p on first use and writes every
// change back to it.
func WithPersistence(p SessionStore) Option {
	return func(cl *Client) {
		cl.persist = p
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

// New creates a Client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.AnonKey == "" {
		return nil, ErrMissingAPIKey
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("authapi: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:   base,
		apiKey:    cfg.AnonKey,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.Discard(),
		now:       time.Now,
		listeners: make(map[uint64]func(auth.SessionEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("authapi"))
	return c, nil
}

// GetSession returns the cached session, refreshing it first when it is
// about to expire. A refresh rejected by the service drops the session.
func (c *Client) GetSession(ctx context.Context) (*auth.Session, error) {
	sess := c.current(ctx)
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(c.now().Add(refreshLeeway)) || sess.RefreshToken == "" {
		return sess, nil
	}

	refreshed, err := c.refresh(ctx, sess.RefreshToken)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			c.logger.InfoContext(ctx, "persisted session rejected", logger.Error(err))
			c.replace(ctx, nil, auth.EventSignedOut)
			return nil, nil
		}
		return nil, err
	}
	c.replace(ctx, refreshed, auth.EventTokenRefreshed)
	return refreshed, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	sess, err := c.grant(ctx, "password", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.replace(ctx, sess, auth.EventSignedIn)
	return sess, nil
}

// SignUp registers an account. A nil session means the service sent a
// confirmation email instead of signing the user in.
func (c *Client) SignUp(ctx context.Context, params auth.SignUpParams) (*auth.Session, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
	}
	if len(params.Metadata) > 0 {
		body["data"] = params.Metadata
	}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, nil, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}

	sess, err := c.sessionFrom(resp)
	if err != nil {
		return nil, err
	}
	c.replace(ctx, sess, auth.EventSignedIn)
	return sess, nil
}

// SignOut revokes the session on the service and drops it locally. The
// local session is dropped even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.current(ctx)
	if sess == nil {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/logout", nil, nil, sess.Token(), nil)
	c.replace(ctx, nil, auth.EventSignedOut)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// ResetPasswordForEmail asks the service to email a recovery link that
// redirects to redirectURL.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	query := url.Values{}
	if redirectURL != "" {
		query.Set("redirect_to", redirectURL)
	}
	return c.do(ctx, http.MethodPost, "/recover", query, map[string]any{"email": email}, nil, nil)
}

// UpdatePassword sets a new password for the current session.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	_, err := c.updateUser(ctx, map[string]any{"password": newPassword})
	return err
}

// UpdateUser changes the email or metadata of the current user.
func (c *Client) UpdateUser(ctx context.Context, update auth.UserUpdate) (*auth.User, error) {
	body := map[string]any{}
	if update.Email != "" {
		body["email"] = update.Email
	}
	if len(update.Metadata) > 0 {
		body["data"] = update.Metadata
	}
	return c.updateUser(ctx, body)
}

func (c *Client) updateUser(ctx context.Context, body map[string]any) (*auth.User, error) {
	sess := c.current(ctx)
	if sess == nil {
		return nil, auth.ErrSessionMissing
	}

	var resp userResponse
	if err := c.do(ctx, http.MethodPut, "/user", nil, body, sess.Token(), &resp); err != nil {
		return nil, err
	}
	user, err := resp.toUser()
	if err != nil {
		return nil, err
	}

	next := *sess
	next.User = user
	c.replace(ctx, &next, auth.EventUserUpdated)
	return &user, nil
}

// SetSession validates tokens received out of band and installs them as
// the current session. An expired access token is refreshed.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*auth.Session, error) {
	if accessToken == "" {
		return nil, auth.ErrTokenMissing
	}

	expiresAt := expiryFromJWT(accessToken)
	if !expiresAt.IsZero() && !c.now().Before(expiresAt) && refreshToken != "" {
		sess, err := c.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		c.replace(ctx, sess, auth.EventSignedIn)
		return sess, nil
	}

	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, tok, &resp); err != nil {
		return nil, err
	}
	user, err := resp.toUser()
	if err != nil {
		return nil, err
	}

	sess := &auth.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}
	c.replace(ctx, sess, auth.EventSignedIn)
	return sess, nil
}

// SignInWithIDToken exchanges a provider identity token for a session.
func (c *Client) SignInWithIDToken(ctx context.Context, params auth.IDTokenParams) (*auth.Session, error) {
	body := map[string]any{
		"provider": params.Provider,
		"id_token": params.Token,
	}
	if params.Nonce != "" {
		body["nonce"] = params.Nonce
	}
	sess, err := c.grant(ctx, "id_token", body)
	if err != nil {
		return nil, err
	}
	c.replace(ctx, sess, auth.EventSignedIn)
	return sess, nil
}

// OAuthURL builds the authorization URL for provider. No request is made.
func (c *Client) OAuthURL(_ context.Context, provider, redirectURL string) (string, error) {
	if provider == "" {
		return "", auth.ErrProviderUnavailable
	}
	u := c.endpoint("/authorize")
	q := url.Values{}
	q.Set("provider", provider)
	if redirectURL != "" {
		q.Set("redirect_to", redirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OnSessionChange implements auth.Backend.
func (c *Client) OnSessionChange(fn func(auth.SessionEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	id := c.next
	c.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Session returns the cached session without contacting the service.
func (c *Client) Session() *auth.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// current returns the in-memory session, loading the persisted one the
// first time it is needed. A session that cannot be loaded counts as none.
func (c *Client) current(ctx context.Context) *auth.Session {
	c.mu.Lock()
	if c.restored || c.persist == nil || c.session != nil {
		c.restored = true
		sess := c.session
		c.mu.Unlock()
		return sess
	}
	c.restored = true
	c.mu.Unlock()

	stored, err := c.persist.LoadSession(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "persisted session not loaded", logger.Error(err))
		stored = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		c.session = stored
	}
	return c.session
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	return c.grant(ctx, "refresh_token", map[string]any{"refresh_token": refreshToken})
}

func (c *Client) grant(ctx context.Context, grantType string, body map[string]any) (*auth.Session, error) {
	query := url.Values{}
	query.Set("grant_type", grantType)

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token", query, body, nil, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response without access token", ErrUnexpectedBody)
	}
	return c.sessionFrom(resp)
}

// replace installs sess, writes it through to persistence and notifies
// listeners outside the lock. A failed write is logged; the in-memory
// session stays authoritative.
func (c *Client) replace(ctx context.Context, sess *auth.Session, event auth.EventType) {
	c.mu.Lock()
	c.session = sess
	c.restored = true
	c.mu.Unlock()

	if c.persist != nil {
		if err := c.persist.SaveSession(context.WithoutCancel(ctx), sess); err != nil {
			c.logger.WarnContext(ctx, "session not persisted", logger.Error(err))
		}
	}

	c.mu.Lock()
	fns := make([]func(auth.SessionEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	ev := auth.SessionEvent{Type: event, Session: sess}
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return &u
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, tok *oauth2.Token, out any) error {
	u := c.endpoint(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("authapi: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("authapi: failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != nil {
		tok.SetAuthHeader(req)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("authapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "auth api call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		logger.Duration(c.now().Sub(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		return apiErr.classify()
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedBody, err)
	}
	return nil
}

type tokenResponse struct {
	oauth2.Token
	ExpiresAt int64        `json:"expires_at"`
	User      userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userResponse) toUser() (auth.User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return auth.User{}, fmt.Errorf("%w: user id %q", ErrUnexpectedBody, u.ID)
	}
	return auth.User{ID: id, Email: u.Email, Metadata: u.UserMetadata}, nil
}

func (c *Client) sessionFrom(resp tokenResponse) (*auth.Session, error) {
	user, err := resp.User.toUser()
	if err != nil {
		return nil, err
	}

	var expiresAt time.Time
	switch {
	case resp.ExpiresAt > 0:
		expiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	default:
		expiresAt = expiryFromJWT(resp.AccessToken)
	}

	return &auth.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// expiryFromJWT reads the exp claim without verifying the signature. Opaque
// tokens yield the zero time.
func expiryFromJWT(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
