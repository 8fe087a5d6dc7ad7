package events

import (
	"context"

	"github.com/google/uuid"
)

// CorrelationHeader is read from and echoed on every HTTP exchange.
const CorrelationHeader = "X-Correlation-Id"

type correlationKey struct{}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// EnsureCorrelationID keeps a usable incoming id or mints a new one.
func EnsureCorrelationID(incoming string) string {
	if incoming != "" && len(incoming) <= 128 {
		return incoming
	}
	return uuid.NewString()
}
