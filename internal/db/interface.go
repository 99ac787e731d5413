package db

import (
	"context"
	"errors"
	"math"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
)

type DbInterface interface {
	Ping(ctx context.Context) error

	// InitGlobalState inserts the singleton global state. It returns
	// DuplicateKeyError if the protocol is already initialized.
	InitGlobalState(ctx context.Context, state *model.GlobalStateDocument) error
	GetGlobalState(ctx context.Context) (*model.GlobalStateDocument, error)
	// UpdateGlobalState applies opts if the stored version still equals
	// expectedVersion, otherwise it returns ConflictError.
	UpdateGlobalState(
		ctx context.Context, expectedVersion uint64, opts ...GlobalStateOption,
	) (*model.GlobalStateDocument, error)
	// ApplyGovernanceUpdate sets the delta threshold and stores the audit
	// record in one atomic step.
	ApplyGovernanceUpdate(
		ctx context.Context, expectedVersion uint64, update *model.GovernanceUpdateDocument,
	) (*model.GlobalStateDocument, error)
	FindGovernanceUpdates(ctx context.Context, limit int64) ([]*model.GovernanceUpdateDocument, error)

	GetUserAccount(ctx context.Context, owner string) (*model.UserAccountDocument, error)
	// FindStakedAccounts returns accounts with a positive amount ordered by
	// amount desc, staked since asc, owner asc.
	FindStakedAccounts(ctx context.Context) ([]*model.UserAccountDocument, error)
	// CommitAccount writes the account and moves the global total staked in
	// one atomic step. See AccountCommit.
	CommitAccount(ctx context.Context, commit *AccountCommit) (*model.GlobalStateDocument, error)
	// SumAccountAmounts returns the sum of all account amounts.
	SumAccountAmounts(ctx context.Context) (uint64, error)
	// DeleteDustAccounts removes accounts holding a zero amount.
	DeleteDustAccounts(ctx context.Context) (int64, error)

	FindLiquidationRecords(ctx context.Context, owner string, limit int64) ([]*model.LiquidationRecord, error)
}

// AccountCommit is the unit of atomic change for one account.
type AccountCommit struct {
	// Account is the new state of the account. Its version is set by the store.
	Account *model.UserAccountDocument
	// PrevVersion is the version the change was computed from, zero when the
	// account does not exist yet.
	PrevVersion uint64
	// RewardEpoch is the stored global reward epoch the change was computed
	// from. The commit fails with ConflictError if the epoch moved.
	RewardEpoch    uint64
	StakedIncrease uint64
	StakedDecrease uint64
	// Liquidation is stored together with the account change when set.
	Liquidation *model.LiquidationRecord
	// Accrual, when set, is written to the global state in the same step.
	Accrual *Accrual
}

// Accrual is a profit window folded into the reward index by an account
// commit.
type Accrual struct {
	// GlobalVersion is the global state version the window was computed
	// from. The commit fails with ConflictError if the version moved.
	GlobalVersion uint64
	LastUpdate    int64
	// RewardIndex is empty when the window left the index unchanged.
	RewardIndex string
}

func (c *AccountCommit) validate() error {
	if c == nil || c.Account == nil {
		return errors.New("account commit without account")
	}
	if c.Account.Owner == "" {
		return errors.New("account commit without owner")
	}
	if c.StakedIncrease > math.MaxInt64 || c.StakedDecrease > math.MaxInt64 {
		return errors.New("account commit delta out of range")
	}
	return nil
}

// stakedDelta is the signed change of the global total staked.
func (c *AccountCommit) stakedDelta() int64 {
	return int64(c.StakedIncrease) - int64(c.StakedDecrease)
}

type globalStateUpdate struct {
	rewardIndex   *string
	lastUpdate    *int64
	lastRebalance *int64
}

type GlobalStateOption func(*globalStateUpdate)

// WithRewardIndex sets a new reward index and advances the reward epoch.
func WithRewardIndex(index string) GlobalStateOption {
	return func(u *globalStateUpdate) {
		u.rewardIndex = &index
	}
}

func WithLastUpdate(ts int64) GlobalStateOption {
	return func(u *globalStateUpdate) {
		u.lastUpdate = &ts
	}
}

func WithLastRebalance(ts int64) GlobalStateOption {
	return func(u *globalStateUpdate) {
		u.lastRebalance = &ts
	}
}

func newGlobalStateUpdate(opts []GlobalStateOption) *globalStateUpdate {
	u := &globalStateUpdate{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *globalStateUpdate) apply(state *model.GlobalStateDocument) {
	if u.rewardIndex != nil {
		state.RewardIndex = *u.rewardIndex
		state.RewardEpoch++
	}
	if u.lastUpdate != nil {
		state.LastUpdate = *u.lastUpdate
	}
	if u.lastRebalance != nil {
		state.LastRebalance = *u.lastRebalance
	}
	state.Version++
}
