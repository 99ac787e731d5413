package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/internal/utils/conflict"
	"github.com/dnt-protocol/dnt-staking-engine/pkg"
)

// Deposit is one collateral transfer into a staking account.
type Deposit struct {
	Asset    types.AssetKind `json:"asset"`
	Quantity uint64          `json:"quantity"`
}

// accountChange describes what an operation did to an already settled
// account. A nil change means there is nothing to commit.
type accountChange struct {
	increase    uint64
	decrease    uint64
	released    map[types.AssetKind]uint64
	liquidation *model.LiquidationRecord
}

type applyFunc func(
	account *model.UserAccountDocument, state *model.GlobalStateDocument, exists, settled bool,
) (*accountChange, error)

// accrualMode controls what a mutation does when the profit feed cannot be
// read.
type accrualMode int

const (
	// accrueRequired fails the mutation.
	accrueRequired accrualMode = iota
	// accrueIfAvailable settles against the stored reward index and leaves
	// the window for a later accrual.
	accrueIfAvailable
)

// mutateAccount is the single write path for accounts. Under the account
// lock it folds the pending profit window into a proposed global state,
// settles the account against it and lets apply change it. Nothing is
// written unless apply returns a change, in which case the window, the
// account and the total staked delta are committed together. Storage
// conflicts restart the whole sequence.
func (s *Service) mutateAccount(
	ctx context.Context, owner string, now int64, operation string, mode accrualMode, apply applyFunc,
) (*MutationResult, error) {
	unlock := s.locks.Lock(owner)
	defer unlock()

	var (
		window   profitWindow
		feedDown bool
	)
	return conflict.Retry(ctx, &s.cfg.Engine, operation, func() (*MutationResult, error) {
		stored, err := s.getGlobalState(ctx)
		if err != nil {
			return nil, err
		}

		var pending *accrual
		if !feedDown {
			pending, err = s.computeAccrual(ctx, stored, now, &window)
			if err != nil {
				if mode != accrueIfAvailable || !types.IsErrorCode(err, types.ProfitFeedUnavailable) {
					return nil, err
				}
				log.Ctx(ctx).Warn().Err(err).
					Str("operation", operation).
					Str("principal", owner).
					Msg("profit feed unavailable, settling against stored reward index")
				feedDown = true
			}
		}
		state := stored
		if pending != nil {
			state = pending.state
		}

		account, exists, err := s.loadAccount(ctx, owner, state, now)
		if err != nil {
			return nil, err
		}
		prevVersion := account.Version
		original := account.Clone()

		reward, settled, err := settleAccount(account, state, now)
		if err != nil {
			return nil, types.NewInternalServiceError(err)
		}

		change, err := apply(account, state, exists, settled)
		if err != nil {
			return nil, err
		}
		if change == nil {
			return &MutationResult{
				Account: newAccountSnapshot(original),
				Global:  newGlobalSnapshot(stored),
			}, nil
		}

		increase := change.increase + reward
		if increase < reward || state.TotalStaked > math.MaxUint64-increase {
			return nil, types.NewInvalidAmountError("total staked would overflow")
		}

		commit := &db.AccountCommit{
			Account:        account,
			PrevVersion:    prevVersion,
			RewardEpoch:    stored.RewardEpoch,
			StakedIncrease: increase,
			StakedDecrease: change.decrease,
			Liquidation:    change.liquidation,
		}
		if pending != nil {
			commit.Accrual = pending.commit()
		}
		updated, err := s.db.CommitAccount(ctx, commit)
		if err != nil {
			return nil, storageError(err)
		}
		if pending != nil {
			pending.persisted(ctx)
		}
		metrics.RecordTotalStaked(updated.TotalStaked)

		return &MutationResult{
			Account:     newAccountSnapshot(account),
			Global:      newGlobalSnapshot(updated),
			Reward:      reward,
			Released:    change.released,
			Liquidation: change.liquidation,
		}, nil
	})
}

// loadAccount returns the stored account, or a fresh one positioned at the
// current reward index so it earns nothing from earlier windows.
func (s *Service) loadAccount(
	ctx context.Context, owner string, state *model.GlobalStateDocument, now int64,
) (*model.UserAccountDocument, bool, error) {
	account, err := s.db.GetUserAccount(ctx, owner)
	if err == nil {
		if account.CollateralMix == nil {
			account.CollateralMix = make(map[types.AssetKind]uint64)
		}
		return account, true, nil
	}
	if !db.IsNotFoundError(err) {
		return nil, false, storageError(err)
	}

	account = model.NewUserAccountDocument(owner)
	account.RewardIndex = state.RewardIndex
	account.LastUpdate = now
	return account, false, nil
}

func (s *Service) validatePrincipal(principal string) error {
	if principal == "" {
		return types.NewErrorWithMsg(http.StatusBadRequest, types.BadRequest, "principal must be set")
	}
	if s.cfg.Engine.PrincipalPrefix == "" {
		return nil
	}
	if err := pkg.ValidatePrincipal(principal, s.cfg.Engine.PrincipalPrefix); err != nil {
		return types.NewError(http.StatusBadRequest, types.BadRequest, fmt.Errorf("invalid principal: %w", err))
	}
	return nil
}

// Stake deposits quantity of asset into the principal's account.
func (s *Service) Stake(
	ctx context.Context, principal string, asset types.AssetKind, quantity uint64,
) (*MutationResult, error) {
	return s.StakeBatch(ctx, principal, []Deposit{{Asset: asset, Quantity: quantity}})
}

// StakeBatch deposits several collateral kinds in one atomic step. Either
// every deposit is applied or none is.
func (s *Service) StakeBatch(ctx context.Context, principal string, deposits []Deposit) (*MutationResult, error) {
	if len(deposits) == 0 {
		return nil, types.NewInvalidAmountError("no deposits")
	}
	for _, d := range deposits {
		if d.Quantity == 0 {
			return nil, types.NewInvalidAmountError("quantity must be positive")
		}
		if !d.Asset.IsSupported() {
			return nil, types.NewInvalidAssetError(d.Asset)
		}
	}
	if err := s.validatePrincipal(principal); err != nil {
		return nil, err
	}

	// prices are fetched before anything is written
	var equivalent uint64
	for _, d := range deposits {
		units, err := s.toStakeUnits(ctx, d)
		if err != nil {
			return nil, err
		}
		if equivalent > math.MaxUint64-units {
			return nil, types.NewInvalidAmountError("deposit value overflows")
		}
		equivalent += units
	}
	if equivalent == 0 {
		return nil, types.NewInvalidAmountError("deposit is worth zero stake units")
	}

	now := s.clock.Now().Unix()
	result, err := s.mutateAccount(ctx, principal, now, "stake", accrueRequired,
		func(account *model.UserAccountDocument, _ *model.GlobalStateDocument, _, _ bool) (*accountChange, error) {
			if account.Amount > math.MaxUint64-equivalent {
				return nil, types.NewInvalidAmountError("account amount would overflow")
			}
			if account.Amount == 0 || s.cfg.Engine.ResetLockupOnDeposit {
				account.StakedSince = now
			}
			for _, d := range deposits {
				if account.CollateralMix[d.Asset] > math.MaxUint64-d.Quantity {
					return nil, types.NewInvalidAmountError("collateral balance would overflow")
				}
				account.CollateralMix[d.Asset] += d.Quantity
			}
			account.Amount += equivalent
			account.LastUpdate = now
			return &accountChange{increase: equivalent}, nil
		})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("principal", principal).
		Uint64("units", equivalent).
		Int("deposits", len(deposits)).
		Msg("stake applied")
	s.afterMutation()
	return result, nil
}

// toStakeUnits converts a deposit into protocol token units. The protocol
// token itself converts one to one without a price lookup.
func (s *Service) toStakeUnits(ctx context.Context, d Deposit) (uint64, error) {
	if d.Asset == types.AssetDNT {
		return d.Quantity, nil
	}

	price, err := s.pricing.GetPrice(ctx, d.Asset)
	if err != nil {
		return 0, types.NewFeedUnavailableError(types.PricingFeedUnavailable, err)
	}
	units := price.MulInt(sdkmath.NewIntFromUint64(d.Quantity)).TruncateInt()
	if !units.IsUint64() {
		return 0, types.NewInvalidAmountError("deposit value overflows")
	}
	return units.Uint64(), nil
}

// Unstake withdraws quantity stake units and returns the collateral released
// for them.
func (s *Service) Unstake(ctx context.Context, principal string, quantity uint64) (*MutationResult, error) {
	if quantity == 0 {
		return nil, types.NewInvalidAmountError("quantity must be positive")
	}
	if err := s.validatePrincipal(principal); err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()
	minDuration := int64(s.cfg.Engine.MinStakeDuration / time.Second)

	result, err := s.mutateAccount(ctx, principal, now, "unstake", accrueRequired,
		func(account *model.UserAccountDocument, _ *model.GlobalStateDocument, _, _ bool) (*accountChange, error) {
			if quantity > account.Amount {
				return nil, types.NewInsufficientBalanceError(quantity, account.Amount)
			}
			if held := now - account.StakedSince; held < minDuration {
				return nil, types.NewLockupActiveError(minDuration - held)
			}
			return withdraw(account, quantity, now), nil
		})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("principal", principal).
		Uint64("quantity", quantity).
		Msg("unstake applied")
	s.afterMutation()
	return result, nil
}

func withdraw(account *model.UserAccountDocument, quantity uint64, now int64) *accountChange {
	released := releaseCollateral(account.CollateralMix, quantity, account.Amount)
	account.Amount -= quantity
	account.LastUpdate = now
	return &accountChange{decrease: quantity, released: released}
}

// liquidationContext is the reading a forced unstake is based on.
type liquidationContext struct {
	reason      types.LiquidationReason
	netDelta    int64
	threshold   uint64
	lossPercent uint64
}

// forceUnstake removes up to maxQuantity units from the account without the
// lockup check and records the liquidation in the same commit. It returns a
// nil result when the account holds nothing.
func (s *Service) forceUnstake(
	ctx context.Context, principal string, maxQuantity uint64, lc liquidationContext,
) (*MutationResult, error) {
	now := s.clock.Now().Unix()

	result, err := s.mutateAccount(ctx, principal, now, "force_unstake", accrueIfAvailable,
		func(account *model.UserAccountDocument, _ *model.GlobalStateDocument, _, _ bool) (*accountChange, error) {
			quantity := min(account.Amount, maxQuantity)
			if quantity == 0 {
				return nil, nil
			}
			change := withdraw(account, quantity, now)
			change.liquidation = &model.LiquidationRecord{
				ID:                 uuid.New().String(),
				Owner:              principal,
				Quantity:           quantity,
				Reason:             lc.reason,
				Timestamp:          now,
				NetDelta:           lc.netDelta,
				Threshold:          lc.threshold,
				LossPercent:        lc.lossPercent,
				ReleasedCollateral: change.released,
			}
			return change, nil
		})
	if err != nil {
		return nil, err
	}
	if result.Liquidation == nil {
		return nil, nil
	}

	record := result.Liquidation
	metrics.RecordLiquidation(record.Reason.String(), record.Quantity)
	log.Ctx(ctx).Warn().
		Str("principal", principal).
		Uint64("quantity", record.Quantity).
		Str("reason", record.Reason.String()).
		Int64("net_delta", record.NetDelta).
		Msg("account force unstaked")

	if s.publisher != nil {
		if err := s.publisher.PublishLiquidation(ctx, queue.NewLiquidationMessage(record)); err != nil {
			// the record is persisted, the audit event is best effort
			log.Ctx(ctx).Error().Err(err).Str("liquidation_id", record.ID).Msg("failed to publish liquidation")
		}
	}
	return result, nil
}
