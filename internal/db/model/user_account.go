package model

import (
	"maps"

	sdkmath "cosmossdk.io/math"

	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

const UserAccountCollection = "user_accounts"

// UserAccountDocument is the staking account of one principal. Accounts are
// kept at zero balance so re-staking keeps the same record.
type UserAccountDocument struct {
	Owner         string                     `bson:"_id" json:"owner"`
	Amount        uint64                     `bson:"amount" json:"amount"`
	CollateralMix map[types.AssetKind]uint64 `bson:"collateral_mix" json:"collateral_mix"`
	LastUpdate    int64                      `bson:"last_update" json:"last_update"`
	StakedSince   int64                      `bson:"staked_since" json:"staked_since"`
	// RewardIndex is the global reward index the account was last settled at
	RewardIndex string `bson:"reward_index" json:"reward_index"`
	Version     uint64 `bson:"version" json:"version"`
}

func NewUserAccountDocument(owner string) *UserAccountDocument {
	return &UserAccountDocument{
		Owner:         owner,
		CollateralMix: make(map[types.AssetKind]uint64),
		RewardIndex:   sdkmath.LegacyZeroDec().String(),
	}
}

func (a *UserAccountDocument) Index() (sdkmath.LegacyDec, error) {
	return parseIndex(a.RewardIndex)
}

// IsEmpty reports whether the account holds no stake and therefore no
// voting weight.
func (a *UserAccountDocument) IsEmpty() bool {
	return a.Amount == 0
}

func (a *UserAccountDocument) Clone() *UserAccountDocument {
	if a == nil {
		return nil
	}
	clone := *a
	clone.CollateralMix = maps.Clone(a.CollateralMix)
	if clone.CollateralMix == nil {
		clone.CollateralMix = make(map[types.AssetKind]uint64)
	}
	return &clone
}
