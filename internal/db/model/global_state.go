package model

import (
	sdkmath "cosmossdk.io/math"
)

const (
	GlobalStateCollection = "global_state"
	GlobalStateID         = "global"
)

// GlobalStateDocument is the singleton protocol record.
type GlobalStateDocument struct {
	ID string `bson:"_id" json:"-"`
	// TotalStaked is the sum of every UserAccountDocument.Amount
	TotalStaked uint64 `bson:"total_staked" json:"total_staked"`
	// LastUpdate is the end of the last profit window consumed by the reward engine
	LastUpdate            int64  `bson:"last_update" json:"last_update"`
	LastRebalance         int64  `bson:"last_rebalance" json:"last_rebalance"`
	AllowedDeltaThreshold uint64 `bson:"allowed_delta_threshold" json:"allowed_delta_threshold"`
	// RewardIndex is the cumulative reward per staked unit, stored as a decimal string
	RewardIndex string `bson:"reward_index" json:"reward_index"`
	// RewardEpoch changes every time RewardIndex changes
	RewardEpoch uint64 `bson:"reward_epoch" json:"reward_epoch"`
	Version     uint64 `bson:"version" json:"version"`
}

func NewGlobalStateDocument(now int64, threshold uint64) *GlobalStateDocument {
	return &GlobalStateDocument{
		ID:                    GlobalStateID,
		LastUpdate:            now,
		LastRebalance:         now,
		AllowedDeltaThreshold: threshold,
		RewardIndex:           sdkmath.LegacyZeroDec().String(),
		Version:               1,
	}
}

// Index parses RewardIndex. An empty value is treated as zero.
func (g *GlobalStateDocument) Index() (sdkmath.LegacyDec, error) {
	return parseIndex(g.RewardIndex)
}

func (g *GlobalStateDocument) Clone() *GlobalStateDocument {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

func parseIndex(s string) (sdkmath.LegacyDec, error) {
	if s == "" {
		return sdkmath.LegacyZeroDec(), nil
	}
	return sdkmath.LegacyNewDecFromStr(s)
}
