package services

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

// LiquidateLosses force unstakes, in full, every account whose hedge
// position lost more than risk.max-allowed-loss-percent of its collateral.
// It holds the evaluate lock, so it never interleaves with an unwind pass.
// When the position feed is unavailable nothing is changed.
func (s *Service) LiquidateLosses(ctx context.Context) (*LossReport, error) {
	if err := s.acquireEvaluate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseEvaluate()

	positions, err := s.hedge.GetPositionLosses(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("position feed unavailable, skipping loss check")
		return nil, types.NewFeedUnavailableError(types.PositionFeedUnavailable, err)
	}

	limit := s.cfg.Risk.MaxAllowedLossPercent
	report := &LossReport{
		MaxAllowedLossPercent: limit,
		Positions:             len(positions.Positions),
		Liquidations:          []*model.LiquidationRecord{},
	}

	for _, position := range positions.Exceeding(limit) {
		if len(report.Liquidations) >= s.cfg.Risk.MaxLiquidationsPerPass {
			log.Ctx(ctx).Warn().
				Int("max_liquidations", s.cfg.Risk.MaxLiquidationsPerPass).
				Msg("liquidation limit per pass reached")
			report.Truncated = true
			break
		}
		if err := s.validatePrincipal(position.Owner); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("owner", position.Owner).Msg("skipping position with invalid owner")
			continue
		}

		lc := liquidationContext{
			reason:      types.ReasonMaxLossExceeded,
			threshold:   limit,
			lossPercent: position.LossPercent,
		}
		result, err := s.forceUnstake(ctx, position.Owner, math.MaxUint64, lc)
		if err != nil {
			return nil, fmt.Errorf("failed to force unstake %s: %w", position.Owner, err)
		}
		if result == nil {
			continue
		}
		report.Unwound += result.Liquidation.Quantity
		report.Liquidations = append(report.Liquidations, result.Liquidation)
	}

	log.Ctx(ctx).Info().
		Uint64("max_allowed_loss_percent", limit).
		Int("positions", report.Positions).
		Uint64("unwound", report.Unwound).
		Int("liquidations", len(report.Liquidations)).
		Msg("loss check completed")
	return report, nil
}

func (s *Service) lossCheckPass(ctx context.Context) error {
	ctx = tracing.InjectTraceID(ctx)
	_, err := s.LiquidateLosses(ctx)
	return err
}
