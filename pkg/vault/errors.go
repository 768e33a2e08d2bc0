package vault

import "errors"

var (
	ErrInvalidKey          = errors.New("invalid vault key: must be 32 bytes")
	ErrKeyDerivationFailed = errors.New("vault key derivation failed")
	ErrSealFailed          = errors.New("failed to seal value")
	ErrOpenFailed          = errors.New("failed to open sealed value")
	ErrInvalidCiphertext   = errors.New("invalid ciphertext format")

	ErrNotFound    = errors.New("vault entry not found")
	ErrInvalidName = errors.New("invalid vault entry name")
	ErrUnreadable  = errors.New("stored session is unreadable")

	ErrFailedToParseRedisURL = errors.New("failed to parse redis connection string")
	ErrRedisNotReady         = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed     = errors.New("vault healthcheck failed")
)
