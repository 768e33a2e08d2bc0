package auth

// Config holds the redirect targets and provider names used by the store.
type Config struct {
	RecoveryRedirectURL string `env:"AUTH_RECOVERY_REDIRECT_URL" envDefault:"cuidador://auth/reset"`
	OAuthRedirectURL    string `env:"AUTH_OAUTH_REDIRECT_URL" envDefault:"cuidador://auth/callback"`
	GoogleProvider      string `env:"AUTH_GOOGLE_PROVIDER" envDefault:"google"`
	AppleProvider       string `env:"AUTH_APPLE_PROVIDER" envDefault:"apple"`
}

// DefaultConfig returns the values applied when no Config is given.
func DefaultConfig() Config {
	return Config{
		RecoveryRedirectURL: "cuidador://auth/reset",
		OAuthRedirectURL:    "cuidador://auth/callback",
		GoogleProvider:      "google",
		AppleProvider:       "apple",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RecoveryRedirectURL == "" {
		c.RecoveryRedirectURL = def.RecoveryRedirectURL
	}
	if c.OAuthRedirectURL == "" {
		c.OAuthRedirectURL = def.OAuthRedirectURL
	}
	if c.GoogleProvider == "" {
		c.GoogleProvider = def.GoogleProvider
	}
	if c.AppleProvider == "" {
		c.AppleProvider = def.AppleProvider
	}
	return c
}
