package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/internal/utils/conflict"
)

// Evaluate compares the protocol net delta against the governance threshold
// and force unstakes the largest, then oldest, accounts until the breach is
// covered. Each unwind step re-reads its account, so balances that moved
// during the pass are respected. When the exposure feed is unavailable
// nothing is changed.
func (s *Service) Evaluate(ctx context.Context) (*EvaluationReport, error) {
	if err := s.acquireEvaluate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseEvaluate()

	exposure, err := s.hedge.GetExposure(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("exposure feed unavailable, skipping evaluation")
		return nil, types.NewFeedUnavailableError(types.ExposureFeedUnavailable, err)
	}
	metrics.RecordNetDelta(exposure.NetDelta)

	threshold, err := s.governance.GetThreshold(ctx)
	if err != nil {
		return nil, err
	}

	report := &EvaluationReport{
		NetDelta:     exposure.NetDelta,
		DeltaPerUnit: exposure.UnitDelta(),
		Threshold:    threshold,
		Liquidations: []*model.LiquidationRecord{},
	}

	magnitude := exposure.Magnitude()
	if magnitude > threshold {
		excess := magnitude - threshold
		unit := exposure.UnitDelta()
		report.Required = excess / unit
		if excess%unit != 0 {
			report.Required++
		}

		if err := s.unwind(ctx, report); err != nil {
			return nil, err
		}
		report.ResidualBreach = report.Unwound < report.Required
	}

	state, err := s.recordRebalance(ctx, "evaluate")
	if err != nil {
		return nil, err
	}
	report.Global = newGlobalSnapshot(state)

	logger := log.Ctx(ctx).With().
		Int64("net_delta", report.NetDelta).
		Uint64("threshold", report.Threshold).
		Uint64("required", report.Required).
		Uint64("unwound", report.Unwound).
		Int("liquidations", len(report.Liquidations)).
		Logger()
	if report.ResidualBreach {
		logger.Error().Msg("evaluation finished with exposure still above threshold")
	} else {
		logger.Info().Msg("evaluation completed")
	}
	return report, nil
}

func (s *Service) unwind(ctx context.Context, report *EvaluationReport) error {
	ranking, err := s.db.FindStakedAccounts(ctx)
	if err != nil {
		return storageError(err)
	}

	lc := liquidationContext{
		reason:    types.ReasonRiskThresholdExceeded,
		netDelta:  report.NetDelta,
		threshold: report.Threshold,
	}
	for _, candidate := range ranking {
		if report.Unwound >= report.Required {
			break
		}
		if len(report.Liquidations) >= s.cfg.Risk.MaxLiquidationsPerPass {
			log.Ctx(ctx).Warn().
				Int("max_liquidations", s.cfg.Risk.MaxLiquidationsPerPass).
				Msg("liquidation limit per pass reached")
			break
		}

		remaining := report.Required - report.Unwound
		result, err := s.forceUnstake(ctx, candidate.Owner, remaining, lc)
		if err != nil {
			return fmt.Errorf("failed to force unstake %s: %w", candidate.Owner, err)
		}
		if result == nil {
			// emptied since the ranking was read
			continue
		}
		report.Unwound += result.Liquidation.Quantity
		report.Liquidations = append(report.Liquidations, result.Liquidation)
	}
	return nil
}

// RecordRebalance acknowledges a hedging rebalance by moving the rebalance
// watermark to now.
func (s *Service) RecordRebalance(ctx context.Context) (*GlobalSnapshot, error) {
	state, err := s.recordRebalance(ctx, "rebalance")
	if err != nil {
		return nil, err
	}
	return newGlobalSnapshot(state), nil
}

func (s *Service) recordRebalance(ctx context.Context, operation string) (*model.GlobalStateDocument, error) {
	now := s.clock.Now().Unix()
	return conflict.Retry(ctx, &s.cfg.Engine, operation, func() (*model.GlobalStateDocument, error) {
		state, err := s.getGlobalState(ctx)
		if err != nil {
			return nil, err
		}
		if now < state.LastRebalance {
			return state, nil
		}
		updated, err := s.db.UpdateGlobalState(ctx, state.Version, db.WithLastRebalance(now))
		if err != nil {
			return nil, storageError(err)
		}
		return updated, nil
	})
}

// acquireEvaluate serializes evaluate passes so the timer and reactive
// triggers never unwind concurrently.
func (s *Service) acquireEvaluate(ctx context.Context) error {
	select {
	case s.evaluateLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) releaseEvaluate() {
	<-s.evaluateLock
}

func (s *Service) evaluatePass(ctx context.Context) error {
	ctx = tracing.InjectTraceID(ctx)
	_, err := s.Evaluate(ctx)
	return err
}
