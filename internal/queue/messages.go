package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
)

// LiquidationMessage is the audit event emitted for every forced unstake.
type LiquidationMessage struct {
	ID                 string            `json:"id"`
	Owner              string            `json:"owner"`
	Quantity           uint64            `json:"quantity"`
	Reason             string            `json:"reason"`
	Timestamp          int64             `json:"timestamp"`
	NetDelta           int64             `json:"net_delta"`
	Threshold          uint64            `json:"threshold"`
	LossPercent        uint64            `json:"loss_percent,omitempty"`
	ReleasedCollateral map[string]uint64 `json:"released_collateral"`
}

func NewLiquidationMessage(record *model.LiquidationRecord) *LiquidationMessage {
	released := make(map[string]uint64, len(record.ReleasedCollateral))
	for asset, amount := range record.ReleasedCollateral {
		released[asset.String()] = amount
	}
	return &LiquidationMessage{
		ID:                 record.ID,
		Owner:              record.Owner,
		Quantity:           record.Quantity,
		Reason:             record.Reason.String(),
		Timestamp:          record.Timestamp,
		NetDelta:           record.NetDelta,
		Threshold:          record.Threshold,
		LossPercent:        record.LossPercent,
		ReleasedCollateral: released,
	}
}

// GovernanceUpdateMessage is produced by the governance voting collaborator
// once a proposal changing the delta threshold has passed.
type GovernanceUpdateMessage struct {
	ProposalID   string `json:"proposal_id"`
	NewThreshold uint64 `json:"new_threshold"`
}

func DecodeGovernanceUpdate(body []byte) (*GovernanceUpdateMessage, error) {
	var msg GovernanceUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("invalid governance update: %w", err)
	}
	if msg.ProposalID == "" {
		return nil, errors.New("governance update without proposal id")
	}
	return &msg, nil
}
