package authapi

import "time"

// Config locates the auth service.
type Config struct {
	URL     string        `env:"AUTH_API_URL,required"`
	AnonKey string        `env:"AUTH_API_ANON_KEY,required"`
	Timeout time.Duration `env:"AUTH_API_TIMEOUT" envDefault:"15s"`
}
