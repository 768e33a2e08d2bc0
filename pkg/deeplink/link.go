package deeplink

import (
	"net/url"
	"strconv"
	"strings"
)

// Kind classifies a deep link by the flow it belongs to.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindRecovery      Kind = "recovery"
	KindOAuthCallback Kind = "oauth-callback"
)

// Default path markers recognised by Parse.
const (
	DefaultRecoveryMarker = "reset"
	DefaultCallbackMarker = "callback"
)

// RecoveryTokens are carried by a password recovery link.
// A missing key is left empty; callers decide whether that is fatal.
type RecoveryTokens struct {
	AccessToken  string
	RefreshToken string
	Type         string
}

// Empty reports whether the link carried no access token at all.
func (t RecoveryTokens) Empty() bool {
	return t.AccessToken == ""
}

// OAuthTokens are carried by an OAuth redirect back into the app.
type OAuthTokens struct {
	AccessToken   string
	RefreshToken  string
	ExpiresIn     int64
	ExpiresAt     int64
	ProviderToken string
}

// Link is the parsed form of a delivered URL. Only the token group matching
// Kind is populated.
type Link struct {
	Kind     Kind
	URL      string
	Recovery RecoveryTokens
	OAuth    OAuthTokens

	// Error and ErrorDescription hold a provider-side failure reported on the
	// redirect (for example "access_denied").
	Error            string
	ErrorDescription string
}

// Parser extracts tokens from deep-link URLs. The zero value is not usable;
// construct it with NewParser.
type Parser struct {
	recoveryMarker string
	callbackMarker string
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRecoveryMarker sets the path substring identifying recovery links.
func WithRecoveryMarker(marker string) ParserOption {
	return func(p *Parser) {
		if marker != "" {
			p.recoveryMarker = marker
		}
	}
}

// WithCallbackMarker sets the path substring identifying OAuth callbacks.
func WithCallbackMarker(marker string) ParserOption {
	return func(p *Parser) {
		if marker != "" {
			p.callbackMarker = marker
		}
	}
}

// NewParser creates a Parser with the default markers unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		recoveryMarker: DefaultRecoveryMarker,
		callbackMarker: DefaultCallbackMarker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse classifies raw using the default markers.
func Parse(raw string) Link {
	return defaultParser.Parse(raw)
}

// Parse classifies raw and extracts the tokens carried in its fragment.
// It never fails: anything unrecognised, including an empty string, is
// KindUnknown.
func (p *Parser) Parse(raw string) Link {
	link := Link{Kind: KindUnknown, URL: raw}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return link
	}

	base, fragment, _ := strings.Cut(raw, "#")
	locator, query, _ := strings.Cut(base, "?")
	if _, rest, ok := strings.Cut(locator, "://"); ok {
		locator = rest
	}

	switch {
	case strings.Contains(locator, p.recoveryMarker):
		link.Kind = KindRecovery
	case strings.Contains(locator, p.callbackMarker):
		link.Kind = KindOAuthCallback
	default:
		return link
	}

	params := parsePairs(fragment)
	queryParams := parsePairs(query)

	link.Error = firstOf(params, queryParams, "error")
	link.ErrorDescription = firstOf(params, queryParams, "error_description")

	if link.Kind == KindRecovery {
		link.Recovery = RecoveryTokens{
			AccessToken:  params.Get("access_token"),
			RefreshToken: params.Get("refresh_token"),
			Type:         params.Get("type"),
		}
		return link
	}

	link.OAuth = OAuthTokens{
		AccessToken:   params.Get("access_token"),
		RefreshToken:  params.Get("refresh_token"),
		ExpiresIn:     parseInt(params.Get("expires_in")),
		ExpiresAt:     parseInt(params.Get("expires_at")),
		ProviderToken: params.Get("provider_token"),
	}
	return link
}

// parsePairs decodes key=value&... pairs. Malformed pairs are skipped rather
// than failing the whole link.
func parsePairs(s string) url.Values {
	values := url.Values{}
	for pair := range strings.SplitSeq(s, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil || k == "" {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			v = value
		}
		values.Add(k, v)
	}
	return values
}

func firstOf(primary, fallback url.Values, key string) string {
	if v := primary.Get(key); v != "" {
		return v
	}
	return fallback.Get(key)
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
