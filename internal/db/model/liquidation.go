package model

import "github.com/dnt-protocol/dnt-staking-engine/internal/types"

const LiquidationRecordCollection = "liquidation_records"

type LiquidationRecord struct {
	ID                 string                     `bson:"_id" json:"id"`
	Owner              string                     `bson:"owner" json:"owner"`
	Quantity           uint64                     `bson:"quantity" json:"quantity"`
	Reason             types.LiquidationReason    `bson:"reason" json:"reason"`
	Timestamp          int64                      `bson:"timestamp" json:"timestamp"`
	NetDelta           int64                      `bson:"net_delta" json:"net_delta"`
	Threshold          uint64                     `bson:"threshold" json:"threshold"`
	LossPercent        uint64                     `bson:"loss_percent,omitempty" json:"loss_percent,omitempty"`
	ReleasedCollateral map[types.AssetKind]uint64 `bson:"released_collateral" json:"released_collateral"`
}
