package logger

import (
	"log/slog"
	"time"
)

// Error records err under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Operation records a public auth operation name under the key "operation".
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// OperationID records the per-call identifier under the key "operation_id".
func OperationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("operation_id", id)
}

// Provider records an identity provider under the key "provider".
func Provider(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("provider", name)
}

// Phase records a session lifecycle phase under the key "phase".
func Phase(name string) slog.Attr {
	return slog.String("phase", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Duration records d under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
