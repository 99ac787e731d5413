package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/internal/utils/conflict"
)

// profitWindow caches the report of one profit window, so a retry after a
// lost race does not consume the feed twice.
type profitWindow struct {
	from   int64
	report *hedgeclient.ProfitReport
}

// accrual is a profit window folded into the reward index but not yet
// persisted.
type accrual struct {
	from, to int64
	profit   uint64
	// base is the stored state the window was computed from, state is base
	// with the window applied.
	base  *model.GlobalStateDocument
	state *model.GlobalStateDocument
	// rewardIndex is empty when the window leaves the index unchanged.
	rewardIndex string
}

// computeAccrual reads the profit realized in [state.LastUpdate, now] and
// derives the new reward index. Nothing is written. A nil accrual means the
// window is empty. Profit realized while nothing is staked is dropped.
func (s *Service) computeAccrual(
	ctx context.Context, state *model.GlobalStateDocument, now int64, window *profitWindow,
) (*accrual, error) {
	if now <= state.LastUpdate {
		return nil, nil
	}

	// a lost race against an account commit leaves the window start
	// unchanged, in which case the report is reused
	if window.report == nil || window.from != state.LastUpdate {
		report, err := s.hedge.GetProfit(ctx, state.LastUpdate, now)
		if err != nil {
			return nil, types.NewFeedUnavailableError(types.ProfitFeedUnavailable, err)
		}
		window.from, window.report = state.LastUpdate, report
	}

	profit, err := window.report.Total(now - state.LastUpdate)
	if err != nil {
		return nil, types.NewFeedUnavailableError(types.ProfitFeedUnavailable, err)
	}

	a := &accrual{
		from:   state.LastUpdate,
		to:     now,
		profit: profit,
		base:   state,
		state:  state.Clone(),
	}
	a.state.LastUpdate = now
	if profit > 0 && state.TotalStaked > 0 {
		index, err := state.Index()
		if err != nil {
			return nil, types.NewInternalServiceError(err)
		}
		perUnit := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(profit)).
			QuoTruncate(sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(state.TotalStaked)))
		a.rewardIndex = index.Add(perUnit).String()
		a.state.RewardIndex = a.rewardIndex
		a.state.RewardEpoch++
	}
	return a, nil
}

func (a *accrual) commit() *db.Accrual {
	return &db.Accrual{
		GlobalVersion: a.base.Version,
		LastUpdate:    a.to,
		RewardIndex:   a.rewardIndex,
	}
}

func (a *accrual) options() []db.GlobalStateOption {
	opts := []db.GlobalStateOption{db.WithLastUpdate(a.to)}
	if a.rewardIndex != "" {
		opts = append(opts, db.WithRewardIndex(a.rewardIndex))
	}
	return opts
}

// persisted logs a window once it has been written.
func (a *accrual) persisted(ctx context.Context) {
	logger := log.Ctx(ctx).With().
		Int64("from", a.from).
		Int64("to", a.to).
		Uint64("profit", a.profit).
		Logger()
	if a.base.TotalStaked == 0 && a.profit > 0 {
		logger.Warn().Msg("profit realized while nothing is staked, dropping window")
		return
	}
	logger.Debug().Str("reward_index", a.state.RewardIndex).Msg("profit window accrued")
	metrics.RecordRewardsAccrued(a.profit)
}

// accrue persists the pending profit window on its own. The write is a
// compare and swap on the global version, so the window is consumed by
// exactly one caller.
func (s *Service) accrue(ctx context.Context, now int64) (*model.GlobalStateDocument, error) {
	var window profitWindow

	return conflict.Retry(ctx, &s.cfg.Engine, "accrue", func() (*model.GlobalStateDocument, error) {
		state, err := s.getGlobalState(ctx)
		if err != nil {
			return nil, err
		}
		pending, err := s.computeAccrual(ctx, state, now, &window)
		if err != nil || pending == nil {
			return state, err
		}

		updated, err := s.db.UpdateGlobalState(ctx, state.Version, pending.options()...)
		if err != nil {
			return nil, storageError(err)
		}
		pending.persisted(ctx)
		return updated, nil
	})
}

// settleAccount credits the reward earned since the account was last
// settled and moves it to the current reward index. It reports whether the
// account changed.
func settleAccount(account *model.UserAccountDocument, state *model.GlobalStateDocument, now int64) (uint64, bool, error) {
	globalIndex, err := state.Index()
	if err != nil {
		return 0, false, err
	}
	accountIndex, err := account.Index()
	if err != nil {
		return 0, false, err
	}

	if now <= account.LastUpdate && globalIndex.Equal(accountIndex) {
		return 0, false, nil
	}

	reward, err := pendingReward(account.Amount, accountIndex, globalIndex)
	if err != nil {
		return 0, false, err
	}
	if reward > 0 {
		if account.Amount > math.MaxUint64-reward {
			return 0, false, errors.New("reward overflows account amount")
		}
		account.Amount += reward
		if account.CollateralMix == nil {
			account.CollateralMix = make(map[types.AssetKind]uint64)
		}
		account.CollateralMix[types.AssetDNT] += reward
	}

	account.RewardIndex = state.RewardIndex
	if now > account.LastUpdate {
		account.LastUpdate = now
	}
	return reward, true, nil
}

func pendingReward(amount uint64, accountIndex, globalIndex sdkmath.LegacyDec) (uint64, error) {
	if amount == 0 || !globalIndex.GT(accountIndex) {
		return 0, nil
	}
	reward := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(amount)).
		MulTruncate(globalIndex.Sub(accountIndex)).
		TruncateInt()
	if !reward.IsUint64() {
		return 0, fmt.Errorf("reward %s overflows uint64", reward)
	}
	return reward.Uint64(), nil
}

// Settle credits the account with every reward accrued since its last
// settlement. A second call at the same instant changes nothing.
func (s *Service) Settle(ctx context.Context, principal string) (*MutationResult, error) {
	if err := s.validatePrincipal(principal); err != nil {
		return nil, err
	}
	if _, err := s.db.GetUserAccount(ctx, principal); err != nil {
		return nil, storageError(err)
	}

	now := s.clock.Now().Unix()
	return s.settle(ctx, principal, now)
}

func (s *Service) settle(ctx context.Context, principal string, now int64) (*MutationResult, error) {
	return s.mutateAccount(ctx, principal, now, "settle", accrueRequired,
		func(_ *model.UserAccountDocument, _ *model.GlobalStateDocument, exists, settled bool) (*accountChange, error) {
			if !exists {
				return nil, types.NewNotFoundError("user account not found")
			}
			if !settled {
				return nil, nil
			}
			return &accountChange{}, nil
		})
}

// DistributeRewards accrues the pending profit window once and settles every
// staked account with a bounded worker pool.
func (s *Service) DistributeRewards(ctx context.Context) (*DistributionReport, error) {
	now := s.clock.Now().Unix()

	if _, err := s.accrue(ctx, now); err != nil {
		return nil, err
	}

	accounts, err := s.db.FindStakedAccounts(ctx)
	if err != nil {
		return nil, storageError(err)
	}

	var distributed atomic.Uint64
	p := pool.New().
		WithErrors().
		WithContext(ctx).
		WithMaxGoroutines(s.cfg.Engine.DistributionWorkers)
	for _, account := range accounts {
		owner := account.Owner
		p.Go(func(ctx context.Context) error {
			result, err := s.settle(ctx, owner, now)
			if err != nil {
				return fmt.Errorf("failed to settle %s: %w", owner, err)
			}
			distributed.Add(result.Reward)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	state, err := s.getGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordTotalStaked(state.TotalStaked)

	log.Ctx(ctx).Info().
		Int("accounts", len(accounts)).
		Uint64("distributed", distributed.Load()).
		Uint64("total_staked", state.TotalStaked).
		Msg("reward distribution pass completed")

	return &DistributionReport{
		Accounts:    len(accounts),
		Distributed: distributed.Load(),
		Global:      newGlobalSnapshot(state),
	}, nil
}

func (s *Service) distributionPass(ctx context.Context) error {
	ctx = tracing.InjectTraceID(ctx)
	_, err := s.DistributeRewards(ctx)
	return err
}
