package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

func (s *Service) getGlobalState(ctx context.Context) (*model.GlobalStateDocument, error) {
	state, err := s.db.GetGlobalState(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewNotFoundError("global state is not initialized")
		}
		return nil, types.NewInternalServiceError(err)
	}
	return state, nil
}

func (s *Service) GetGlobalState(ctx context.Context) (*GlobalSnapshot, error) {
	state, err := s.getGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	return newGlobalSnapshot(state), nil
}

// GetUserAccount returns the account including the reward it would receive
// if settled now against the already accrued index.
func (s *Service) GetUserAccount(ctx context.Context, principal string) (*AccountSnapshot, error) {
	if err := s.validatePrincipal(principal); err != nil {
		return nil, err
	}
	account, err := s.db.GetUserAccount(ctx, principal)
	if err != nil {
		return nil, storageError(err)
	}
	state, err := s.getGlobalState(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := newAccountSnapshot(account)
	globalIndex, err := state.Index()
	if err != nil {
		return nil, types.NewInternalServiceError(err)
	}
	accountIndex, err := account.Index()
	if err != nil {
		return nil, types.NewInternalServiceError(err)
	}
	snapshot.PendingReward, err = pendingReward(account.Amount, accountIndex, globalIndex)
	if err != nil {
		return nil, types.NewInternalServiceError(err)
	}
	return snapshot, nil
}

// GetLiquidations returns liquidation records newest first. An empty
// principal returns records of every account.
func (s *Service) GetLiquidations(ctx context.Context, principal string, limit int64) ([]*model.LiquidationRecord, error) {
	if principal != "" {
		if err := s.validatePrincipal(principal); err != nil {
			return nil, err
		}
	}
	records, err := s.db.FindLiquidationRecords(ctx, principal, limit)
	if err != nil {
		return nil, storageError(err)
	}
	if records == nil {
		records = []*model.LiquidationRecord{}
	}
	return records, nil
}

// InitGlobalState creates the protocol record if it does not exist yet. It
// reports whether the record was created by this call.
func (s *Service) InitGlobalState(ctx context.Context) (*GlobalSnapshot, bool, error) {
	now := s.clock.Now().Unix()
	state := model.NewGlobalStateDocument(now, s.cfg.Engine.DefaultAllowedDeltaThreshold)

	err := s.db.InitGlobalState(ctx, state)
	switch {
	case err == nil:
		log.Ctx(ctx).Info().
			Uint64("allowed_delta_threshold", state.AllowedDeltaThreshold).
			Msg("global state initialized")
		return newGlobalSnapshot(state), true, nil
	case db.IsDuplicateKeyError(err):
		existing, err := s.getGlobalState(ctx)
		if err != nil {
			return nil, false, err
		}
		return newGlobalSnapshot(existing), false, nil
	default:
		return nil, false, types.NewInternalServiceError(err)
	}
}

// CheckInvariant verifies that the global total staked equals the sum of
// all account amounts.
func (s *Service) CheckInvariant(ctx context.Context) error {
	state, err := s.getGlobalState(ctx)
	if err != nil {
		return err
	}
	sum, err := s.db.SumAccountAmounts(ctx)
	if err != nil {
		return storageError(err)
	}
	metrics.RecordTotalStaked(state.TotalStaked)

	if sum != state.TotalStaked {
		return types.NewInternalServiceError(
			fmt.Errorf("total staked %d does not match account sum %d", state.TotalStaked, sum),
		)
	}
	return nil
}

// PurgeDustAccounts deletes accounts holding nothing. A purged principal
// that stakes again starts a fresh lockup.
func (s *Service) PurgeDustAccounts(ctx context.Context) (int64, error) {
	deleted, err := s.db.DeleteDustAccounts(ctx)
	if err != nil {
		return 0, storageError(err)
	}
	log.Ctx(ctx).Info().Int64("deleted", deleted).Msg("dust accounts purged")
	return deleted, nil
}
