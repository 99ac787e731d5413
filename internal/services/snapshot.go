package services

import (
	"maps"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

type GlobalSnapshot struct {
	TotalStaked           uint64 `json:"total_staked"`
	LastUpdate            int64  `json:"last_update"`
	LastRebalance         int64  `json:"last_rebalance"`
	AllowedDeltaThreshold uint64 `json:"allowed_delta_threshold"`
	RewardIndex           string `json:"reward_index"`
	RewardEpoch           uint64 `json:"reward_epoch"`
}

func newGlobalSnapshot(state *model.GlobalStateDocument) *GlobalSnapshot {
	return &GlobalSnapshot{
		TotalStaked:           state.TotalStaked,
		LastUpdate:            state.LastUpdate,
		LastRebalance:         state.LastRebalance,
		AllowedDeltaThreshold: state.AllowedDeltaThreshold,
		RewardIndex:           state.RewardIndex,
		RewardEpoch:           state.RewardEpoch,
	}
}

type AccountSnapshot struct {
	Owner         string                     `json:"owner"`
	Amount        uint64                     `json:"amount"`
	CollateralMix map[types.AssetKind]uint64 `json:"collateral_mix"`
	LastUpdate    int64                      `json:"last_update"`
	StakedSince   int64                      `json:"staked_since"`
	// PendingReward is the reward the account would receive if settled
	// against the current reward index. Profit not yet accrued is excluded.
	PendingReward uint64 `json:"pending_reward"`
}

func newAccountSnapshot(account *model.UserAccountDocument) *AccountSnapshot {
	mix := maps.Clone(account.CollateralMix)
	if mix == nil {
		mix = make(map[types.AssetKind]uint64)
	}
	return &AccountSnapshot{
		Owner:         account.Owner,
		Amount:        account.Amount,
		CollateralMix: mix,
		LastUpdate:    account.LastUpdate,
		StakedSince:   account.StakedSince,
	}
}

// MutationResult is returned by every account mutating operation.
type MutationResult struct {
	Account *AccountSnapshot `json:"account"`
	Global  *GlobalSnapshot  `json:"global"`
	// Reward is the amount credited by the settlement performed as part of
	// the operation.
	Reward   uint64                     `json:"reward"`
	Released map[types.AssetKind]uint64 `json:"released,omitempty"`
	// Liquidation is set for forced unstakes.
	Liquidation *model.LiquidationRecord `json:"liquidation,omitempty"`
}

type EvaluationReport struct {
	NetDelta     int64  `json:"net_delta"`
	DeltaPerUnit uint64 `json:"delta_per_unit"`
	Threshold    uint64 `json:"threshold"`
	// Required is the number of staked units that must be unwound to bring
	// the exposure back within the threshold.
	Required     uint64                     `json:"required"`
	Unwound      uint64                     `json:"unwound"`
	Liquidations []*model.LiquidationRecord `json:"liquidations"`
	// ResidualBreach is set when the pass ended before Required was reached.
	ResidualBreach bool            `json:"residual_breach"`
	Global         *GlobalSnapshot `json:"global"`
}

// LossReport is the outcome of one loss check. Threshold on each
// liquidation record is the loss limit that was exceeded.
type LossReport struct {
	MaxAllowedLossPercent uint64                     `json:"max_allowed_loss_percent"`
	Positions             int                        `json:"positions"`
	Unwound               uint64                     `json:"unwound"`
	Liquidations          []*model.LiquidationRecord `json:"liquidations"`
	// Truncated is set when the liquidation limit per pass was reached.
	Truncated bool `json:"truncated"`
}

type DistributionReport struct {
	Accounts    int             `json:"accounts"`
	Distributed uint64          `json:"distributed"`
	Global      *GlobalSnapshot `json:"global"`
}
