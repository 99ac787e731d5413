package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InjectTraceID attaches a logger carrying a fresh trace id to ctx.
func InjectTraceID(ctx context.Context) context.Context {
	return InjectTraceIDWithValue(ctx, uuid.New().String())
}

// InjectTraceIDWithValue attaches a logger carrying the given trace id to ctx.
// It is used when the id arrives with an inbound request or message.
func InjectTraceIDWithValue(ctx context.Context, id string) context.Context {
	logger := log.Ctx(ctx).With().Str("traceId", id).Logger()
	return logger.WithContext(ctx)
}
