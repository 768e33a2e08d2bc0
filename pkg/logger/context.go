package logger

import (
	"context"
	"log/slog"
)

type operationIDKey struct{}

// WithOperationID stores id in ctx so that every record logged with ctx
// carries it when the logger was built with OperationIDExtractor.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

func operationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(operationIDKey{}).(string)
	return id
}

// OperationIDExtractor injects the operation id, if any, into log records.
func OperationIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := operationIDFromContext(ctx); id != "" {
		return OperationID(id), true
	}
	return slog.Attr{}, false
}
