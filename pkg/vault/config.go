package vault

import (
	"encoding/base64"
	"errors"
	"time"
)

// Config selects and configures session persistence. Persistence is off
// while Key is empty.
type Config struct {
	Key      string `env:"VAULT_KEY"` // base64 encoded 32-byte master key
	Dir      string `env:"VAULT_DIR"` // FileStore directory; empty means the user config dir
	RedisURL string `env:"VAULT_REDIS_URL"`

	RetryAttempts  int           `env:"VAULT_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"VAULT_REDIS_RETRY_INTERVAL" envDefault:"1s"`
	ConnectTimeout time.Duration `env:"VAULT_REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether a master key is configured.
func (c Config) Enabled() bool {
	return c.Key != ""
}

// MasterKey decodes Key.
func (c Config) MasterKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
