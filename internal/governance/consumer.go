package governance

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

type UpdateSource interface {
	ConsumeGovernanceUpdates(ctx context.Context, handler queue.GovernanceHandler) error
}

// Consumer applies governance updates delivered by the voting collaborator.
type Consumer struct {
	source    UpdateSource
	authority *Authority
}

func NewConsumer(source UpdateSource, authority *Authority) *Consumer {
	return &Consumer{
		source:    source,
		authority: authority,
	}
}

// Start blocks until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	return c.source.ConsumeGovernanceUpdates(ctx, c.Handle)
}

// Handle applies one update. Rejected updates are logged and acknowledged so
// they are not redelivered; other failures are returned for a retry.
func (c *Consumer) Handle(ctx context.Context, msg *queue.GovernanceUpdateMessage) error {
	ctx = tracing.InjectTraceIDWithValue(ctx, msg.ProposalID)

	_, err := c.authority.ApplyGovernanceUpdate(ctx, msg.ProposalID, msg.NewThreshold)
	if err != nil {
		metrics.RecordGovernanceUpdate(true)
		switch types.CodeOf(err) {
		case types.InvalidParameter, types.NotFound:
			log.Ctx(ctx).Error().Err(err).
				Uint64("new_threshold", msg.NewThreshold).
				Msg("governance update rejected")
			return nil
		default:
			return err
		}
	}

	metrics.RecordGovernanceUpdate(false)
	return nil
}
