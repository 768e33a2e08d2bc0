package pg

import "time"

// Config describes the Postgres database holding the profiles table.
type Config struct {
	ConnectionString string        `env:"PROFILE_DB_URL,required"`
	MaxConns         int32         `env:"PROFILE_DB_MAX_CONNS" envDefault:"4"`
	MinConns         int32         `env:"PROFILE_DB_MIN_CONNS" envDefault:"0"`
	MaxConnIdleTime  time.Duration `env:"PROFILE_DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	MaxConnLifetime  time.Duration `env:"PROFILE_DB_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PROFILE_DB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PROFILE_DB_RETRY_INTERVAL" envDefault:"2s"`

	MigrationsTable string `env:"PROFILE_DB_MIGRATIONS_TABLE" envDefault:"profile_schema_migrations"`
}
