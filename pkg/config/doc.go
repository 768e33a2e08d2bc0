// Package config loads typed configuration structs from environment
// variables (github.com/caarlos0/env) with optional dotenv files
// (github.com/joho/godotenv).
//
// Every package that needs settings declares its own struct with `env` tags
// (auth.Config, authapi.Config, pg.Config, loopback.Config); the host loads
// them once at startup.
package config
