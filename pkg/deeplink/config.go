package deeplink

// Config holds the path markers used to classify incoming links.
type Config struct {
	RecoveryMarker string `env:"DEEPLINK_RECOVERY_MARKER" envDefault:"reset"`
	CallbackMarker string `env:"DEEPLINK_CALLBACK_MARKER" envDefault:"callback"`
}

// Parser builds a Parser from c. Empty markers keep their defaults.
func (c Config) Parser() *Parser {
	return NewParser(
		WithRecoveryMarker(c.RecoveryMarker),
		WithCallbackMarker(c.CallbackMarker),
	)
}
