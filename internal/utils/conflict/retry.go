package conflict

import (
	"context"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

// Retry re-runs f while it fails with a storage conflict, up to the
// configured retry budget. An exhausted budget surfaces as
// ConcurrentUpdateConflict; every other error is returned as is.
func Retry[T any](
	ctx context.Context, cfg *config.EngineConfig, operation string, f func() (T, error),
) (T, error) {
	result, err := retry.DoWithData(f,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxUpdateRetries+1),
		retry.Delay(cfg.UpdateRetryInterval),
		retry.MaxJitter(cfg.UpdateRetryInterval),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			metrics.RecordConflictRetry(operation, n+1)
			log.Ctx(ctx).Debug().
				Str("operation", operation).
				Uint("attempt", n+1).
				Err(err).
				Msg("concurrent update detected, retrying")
		}),
	)
	if err != nil {
		var zero T
		if IsRetryable(err) {
			return zero, types.NewConflictError(err)
		}
		return zero, err
	}
	return result, nil
}

// IsRetryable matches raw storage conflicts. A conflict that already
// exhausted a nested retry budget is final.
func IsRetryable(err error) bool {
	return db.IsConflictError(err) && !types.IsErrorCode(err, types.ConcurrentUpdateConflict)
}
