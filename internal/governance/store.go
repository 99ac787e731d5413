package governance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clock"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/internal/utils/conflict"
)

// Store is the read side of the governance parameters.
type Store struct {
	db     db.DbInterface
	issued atomic.Bool
}

// Authority is the only value allowed to change governance parameters.
type Authority struct {
	db    db.DbInterface
	clock clock.Clock
	cfg   *config.EngineConfig
}

func NewStore(dbClient db.DbInterface) *Store {
	return &Store{db: dbClient}
}

// NewAuthority issues the write capability over the store's parameters. It
// is issued once per store, to the governance message consumer.
func NewAuthority(store *Store, clk clock.Clock, cfg *config.EngineConfig) (*Authority, error) {
	if store == nil || store.db == nil {
		return nil, errors.New("governance store is not initialized")
	}
	if !store.issued.CompareAndSwap(false, true) {
		return nil, errors.New("governance authority already issued for this store")
	}
	return &Authority{db: store.db, clock: clk, cfg: cfg}, nil
}

// GetThreshold returns the current allowed delta threshold.
func (s *Store) GetThreshold(ctx context.Context) (uint64, error) {
	state, err := s.db.GetGlobalState(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return 0, types.NewNotFoundError("global state is not initialized")
		}
		return 0, types.NewInternalServiceError(err)
	}
	return state.AllowedDeltaThreshold, nil
}

// History returns applied governance updates, newest first.
func (s *Store) History(ctx context.Context, limit int64) ([]*model.GovernanceUpdateDocument, error) {
	updates, err := s.db.FindGovernanceUpdates(ctx, limit)
	if err != nil {
		return nil, types.NewInternalServiceError(err)
	}
	return updates, nil
}

// ApplyGovernanceUpdate sets the allowed delta threshold as decided by a
// passed proposal. A zero threshold is rejected and nothing changes. A
// proposal that was already applied is a no-op returning the current state.
// Lost races against other global state writers are retried within the
// engine's update retry budget.
func (a *Authority) ApplyGovernanceUpdate(
	ctx context.Context, proposalID string, newThreshold uint64,
) (*model.GlobalStateDocument, error) {
	if a == nil || a.db == nil || a.cfg == nil {
		return nil, types.NewInternalServiceError(errors.New("governance authority is not initialized"))
	}
	if strings.TrimSpace(proposalID) == "" {
		return nil, types.NewInvalidParameterError("proposal id must be set")
	}
	if newThreshold == 0 {
		return nil, types.NewInvalidParameterError("allowed delta threshold must be positive")
	}

	return conflict.Retry(ctx, a.cfg, "governance_update", func() (*model.GlobalStateDocument, error) {
		state, err := a.db.GetGlobalState(ctx)
		if err != nil {
			if db.IsNotFoundError(err) {
				return nil, types.NewNotFoundError("global state is not initialized")
			}
			return nil, types.NewInternalServiceError(err)
		}

		update := &model.GovernanceUpdateDocument{
			ID:           uuid.New().String(),
			ProposalID:   proposalID,
			OldThreshold: state.AllowedDeltaThreshold,
			NewThreshold: newThreshold,
			AppliedAt:    a.clock.Now().Unix(),
		}
		updated, err := a.db.ApplyGovernanceUpdate(ctx, state.Version, update)
		switch {
		case err == nil:
			log.Ctx(ctx).Info().
				Str("proposal_id", proposalID).
				Uint64("old_threshold", update.OldThreshold).
				Uint64("new_threshold", newThreshold).
				Msg("allowed delta threshold updated")
			return updated, nil
		case db.IsDuplicateKeyError(err):
			log.Ctx(ctx).Info().Str("proposal_id", proposalID).Msg("governance proposal already applied")
			return state, nil
		case db.IsConflictError(err):
			return nil, err
		default:
			return nil, types.NewInternalServiceError(fmt.Errorf("failed to apply governance update: %w", err))
		}
	})
}
