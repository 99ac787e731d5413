package model

const GovernanceUpdateCollection = "governance_updates"

// GovernanceUpdateDocument records every threshold change applied on behalf
// of a passed proposal.
type GovernanceUpdateDocument struct {
	ID           string `bson:"_id" json:"id"`
	ProposalID   string `bson:"proposal_id" json:"proposal_id"`
	OldThreshold uint64 `bson:"old_threshold" json:"old_threshold"`
	NewThreshold uint64 `bson:"new_threshold" json:"new_threshold"`
	AppliedAt    int64  `bson:"applied_at" json:"applied_at"`
}
