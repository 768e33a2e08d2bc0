package loopback

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config controls the local redirect receiver.
type Config struct {
	Addr         string        `env:"LOOPBACK_ADDR" envDefault:"127.0.0.1:54321"`
	CallbackPath string        `env:"LOOPBACK_CALLBACK_PATH" envDefault:"/auth/callback"`
	Timeout      time.Duration `env:"LOOPBACK_TIMEOUT" envDefault:"5m"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:54321"
	}
	if c.CallbackPath == "" {
		c.CallbackPath = "/auth/callback"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	return c
}

// Validate rejects an address the provider could not redirect back to. The
// redirect URL is registered ahead of time, so the port must be fixed.
func (c Config) Validate() error {
	_, port, err := net.SplitHostPort(c.withDefaults().Addr)
	if err != nil {
		return fmt.Errorf("loopback: invalid address %q: %w", c.Addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%w: %q", ErrDynamicPort, c.Addr)
	}
	return nil
}
