package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
)

// BrowserSession opens an authorization URL in a browser and waits for the
// redirect back to redirectURL. It returns the full redirect URL, or "" when
// the redirect was handed to the app through the deep link channel instead.
// A user dismissal returns ErrCanceled.
type BrowserSession interface {
	Open(ctx context.Context, authURL, redirectURL string) (string, error)
}

// CallbackWaiter hands out the next OAuth callback delivered as a deep link.
// *deeplink.Router implements it.
type CallbackWaiter interface {
	ExpectCallback() (<-chan deeplink.Link, func())
}

var _ CallbackWaiter = (*deeplink.Router)(nil)

// providerDenied is the OAuth error code for a user refusing consent.
const providerDenied = "access_denied"

// BrowserOAuthAdapter signs in through a browser redirect flow.
type BrowserOAuthAdapter struct {
	backend     OAuthBackend
	browser     BrowserSession
	provider    string
	redirectURL string
	waiter      CallbackWaiter
	parser      *deeplink.Parser
	logger      *slog.Logger
}

var _ ExternalSignIn = (*BrowserOAuthAdapter)(nil)

// BrowserOption configures a BrowserOAuthAdapter.
type BrowserOption func(*BrowserOAuthAdapter)

// WithCallbackWaiter also accepts the callback when it arrives as a deep
// link rather than as the browser's return value.
func WithCallbackWaiter(w CallbackWaiter) BrowserOption {
	return func(a *BrowserOAuthAdapter) {
		a.waiter = w
	}
}

// WithCallbackParser sets the parser used on the browser's redirect URL.
func WithCallbackParser(p *deeplink.Parser) BrowserOption {
	return func(a *BrowserOAuthAdapter) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithBrowserLogger sets the adapter logger.
func WithBrowserLogger(l *slog.Logger) BrowserOption {
	return func(a *BrowserOAuthAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewBrowserOAuthAdapter creates an adapter for provider redirecting to
// redirectURL. An empty redirectURL falls back to the OAuthRedirectURL of
// DefaultConfig.
func NewBrowserOAuthAdapter(backend OAuthBackend, browser BrowserSession, provider, redirectURL string, opts ...BrowserOption) *BrowserOAuthAdapter {
	if redirectURL == "" {
		redirectURL = DefaultConfig().OAuthRedirectURL
	}
	a := &BrowserOAuthAdapter{
		backend:     backend,
		browser:     browser,
		provider:    provider,
		redirectURL: redirectURL,
		parser:      deeplink.NewParser(),
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider implements ExternalSignIn.
func (a *BrowserOAuthAdapter) Provider() string { return a.provider }

// SignIn implements ExternalSignIn.
func (a *BrowserOAuthAdapter) SignIn(ctx context.Context) (*Session, error) {
	authURL, err := a.backend.OAuthURL(ctx, a.provider, a.redirectURL)
	if err != nil {
		return nil, err
	}

	link, err := a.await(ctx, authURL)
	if err != nil {
		return nil, err
	}

	switch {
	case link.Error == providerDenied:
		return nil, &Error{Kind: KindCanceled, Message: ErrCanceled.Message, Provider: a.provider}
	case link.Error != "":
		msg := link.ErrorDescription
		if msg == "" {
			msg = link.Error
		}
		return nil, &Error{Kind: KindTokenMissing, Message: msg, Provider: a.provider}
	case link.Kind != deeplink.KindOAuthCallback || link.OAuth.AccessToken == "":
		a.logger.WarnContext(ctx, "oauth redirect without access token",
			logger.Provider(a.provider),
			slog.String("kind", string(link.Kind)),
		)
		return nil, &Error{Kind: KindTokenMissing, Message: ErrTokenMissing.Message, Provider: a.provider}
	}

	return a.backend.SetSession(ctx, link.OAuth.AccessToken, link.OAuth.RefreshToken)
}

type browserResult struct {
	url string
	err error
}

// await returns the first callback to arrive, from the browser session or
// from the deep link channel. The other source is abandoned.
func (a *BrowserOAuthAdapter) await(ctx context.Context, authURL string) (deeplink.Link, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var routed <-chan deeplink.Link
	if a.waiter != nil {
		ch, release := a.waiter.ExpectCallback()
		defer release()
		routed = ch
	}

	done := make(chan browserResult, 1)
	go func() {
		u, err := a.browser.Open(ctx, authURL, a.redirectURL)
		done <- browserResult{url: u, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return deeplink.Link{}, a.browserError(r.err)
		}
		if r.url != "" {
			return a.parser.Parse(r.url), nil
		}
		if routed == nil {
			return deeplink.Link{}, &Error{Kind: KindTokenMissing, Message: ErrTokenMissing.Message, Provider: a.provider}
		}
		select {
		case link := <-routed:
			return link, nil
		case <-ctx.Done():
			return deeplink.Link{}, a.browserError(ctx.Err())
		}
	case link := <-routed:
		return link, nil
	case <-ctx.Done():
		return deeplink.Link{}, a.browserError(ctx.Err())
	}
}

func (a *BrowserOAuthAdapter) browserError(err error) error {
	if IsCanceled(err) {
		return &Error{Kind: KindCanceled, Message: ErrCanceled.Message, Provider: a.provider, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Message: "sign-in timed out", Provider: a.provider, Err: err}
	}
	return err
}
