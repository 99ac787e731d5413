package db

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
)

// MemoryDatabase is a process local DbInterface. Every operation holds a
// single lock so multi record commits are atomic. It backs tests and single
// node deployments that do not need persistence.
type MemoryDatabase struct {
	mu           sync.Mutex
	globalState  *model.GlobalStateDocument
	accounts     map[string]*model.UserAccountDocument
	liquidations []*model.LiquidationRecord
	governance   []*model.GovernanceUpdateDocument
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		accounts: make(map[string]*model.UserAccountDocument),
	}
}

func (m *MemoryDatabase) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryDatabase) InitGlobalState(_ context.Context, state *model.GlobalStateDocument) error {
	if state == nil {
		return errors.New("nil global state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.globalState != nil {
		return &DuplicateKeyError{
			Key:     model.GlobalStateID,
			Message: "global state already initialized",
		}
	}
	m.globalState = state.Clone()
	m.globalState.ID = model.GlobalStateID
	return nil
}

func (m *MemoryDatabase) GetGlobalState(_ context.Context) (*model.GlobalStateDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.globalState == nil {
		return nil, &NotFoundError{
			Key:     model.GlobalStateID,
			Message: "global state is not initialized",
		}
	}
	return m.globalState.Clone(), nil
}

func (m *MemoryDatabase) UpdateGlobalState(
	_ context.Context, expectedVersion uint64, opts ...GlobalStateOption,
) (*model.GlobalStateDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkGlobalVersion(expectedVersion); err != nil {
		return nil, err
	}
	newGlobalStateUpdate(opts).apply(m.globalState)
	return m.globalState.Clone(), nil
}

func (m *MemoryDatabase) checkGlobalVersion(expectedVersion uint64) error {
	if m.globalState == nil || m.globalState.Version != expectedVersion {
		return &ConflictError{
			Key:     model.GlobalStateID,
			Message: fmt.Sprintf("global state version %d is stale", expectedVersion),
		}
	}
	return nil
}

func (m *MemoryDatabase) ApplyGovernanceUpdate(
	_ context.Context, expectedVersion uint64, update *model.GovernanceUpdateDocument,
) (*model.GlobalStateDocument, error) {
	if update == nil {
		return nil, errors.New("nil governance update")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, applied := range m.governance {
		if applied.ProposalID == update.ProposalID {
			return nil, &DuplicateKeyError{
				Key:     update.ProposalID,
				Message: "governance proposal already applied",
			}
		}
	}
	if err := m.checkGlobalVersion(expectedVersion); err != nil {
		return nil, err
	}

	m.globalState.AllowedDeltaThreshold = update.NewThreshold
	m.globalState.Version++
	record := *update
	m.governance = append(m.governance, &record)
	return m.globalState.Clone(), nil
}

func (m *MemoryDatabase) FindGovernanceUpdates(_ context.Context, limit int64) ([]*model.GovernanceUpdateDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updates := make([]*model.GovernanceUpdateDocument, 0, len(m.governance))
	for i := len(m.governance) - 1; i >= 0; i-- {
		record := *m.governance[i]
		updates = append(updates, &record)
	}
	slices.SortStableFunc(updates, func(a, b *model.GovernanceUpdateDocument) int {
		return cmp.Compare(b.AppliedAt, a.AppliedAt)
	})
	return truncate(updates, limit), nil
}

func (m *MemoryDatabase) GetUserAccount(_ context.Context, owner string) (*model.UserAccountDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[owner]
	if !ok {
		return nil, &NotFoundError{
			Key:     owner,
			Message: "user account not found",
		}
	}
	return account.Clone(), nil
}

func (m *MemoryDatabase) FindStakedAccounts(_ context.Context) ([]*model.UserAccountDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []*model.UserAccountDocument
	for _, account := range m.accounts {
		if account.Amount > 0 {
			accounts = append(accounts, account.Clone())
		}
	}
	slices.SortFunc(accounts, CompareRanking)
	return accounts, nil
}

// CompareRanking orders accounts by amount desc, staked since asc and owner
// asc.
func CompareRanking(a, b *model.UserAccountDocument) int {
	return cmp.Or(
		cmp.Compare(b.Amount, a.Amount),
		cmp.Compare(a.StakedSince, b.StakedSince),
		cmp.Compare(a.Owner, b.Owner),
	)
}

func (m *MemoryDatabase) CommitAccount(_ context.Context, commit *AccountCommit) (*model.GlobalStateDocument, error) {
	if err := commit.validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	owner := commit.Account.Owner
	current, exists := m.accounts[owner]
	switch {
	case commit.PrevVersion == 0 && exists:
		return nil, &ConflictError{Key: owner, Message: "user account was created concurrently"}
	case commit.PrevVersion != 0 && (!exists || current.Version != commit.PrevVersion):
		return nil, &ConflictError{
			Key:     owner,
			Message: fmt.Sprintf("user account version %d is stale", commit.PrevVersion),
		}
	}

	if m.globalState == nil || m.globalState.RewardEpoch != commit.RewardEpoch {
		return nil, &ConflictError{
			Key:     model.GlobalStateID,
			Message: fmt.Sprintf("reward epoch %d is stale", commit.RewardEpoch),
		}
	}
	if commit.Accrual != nil && m.globalState.Version != commit.Accrual.GlobalVersion {
		return nil, &ConflictError{
			Key:     model.GlobalStateID,
			Message: fmt.Sprintf("global state version %d is stale", commit.Accrual.GlobalVersion),
		}
	}
	if commit.StakedDecrease > commit.StakedIncrease &&
		m.globalState.TotalStaked < commit.StakedDecrease-commit.StakedIncrease {
		return nil, &ConflictError{
			Key:     model.GlobalStateID,
			Message: "total staked would become negative",
		}
	}

	account := commit.Account.Clone()
	account.Version = commit.PrevVersion + 1
	m.accounts[owner] = account
	m.globalState.TotalStaked = m.globalState.TotalStaked + commit.StakedIncrease - commit.StakedDecrease
	if a := commit.Accrual; a != nil {
		m.globalState.LastUpdate = a.LastUpdate
		if a.RewardIndex != "" {
			m.globalState.RewardIndex = a.RewardIndex
			m.globalState.RewardEpoch++
		}
	}
	m.globalState.Version++
	if commit.Liquidation != nil {
		record := *commit.Liquidation
		m.liquidations = append(m.liquidations, &record)
	}

	commit.Account.Version = account.Version
	return m.globalState.Clone(), nil
}

func (m *MemoryDatabase) SumAccountAmounts(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total uint64
	for _, account := range m.accounts {
		total += account.Amount
	}
	return total, nil
}

func (m *MemoryDatabase) DeleteDustAccounts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for owner, account := range m.accounts {
		if account.Amount == 0 {
			delete(m.accounts, owner)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryDatabase) FindLiquidationRecords(
	_ context.Context, owner string, limit int64,
) ([]*model.LiquidationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []*model.LiquidationRecord
	for i := len(m.liquidations) - 1; i >= 0; i-- {
		if owner != "" && m.liquidations[i].Owner != owner {
			continue
		}
		record := *m.liquidations[i]
		records = append(records, &record)
	}
	slices.SortStableFunc(records, func(a, b *model.LiquidationRecord) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	return truncate(records, limit), nil
}

func truncate[T any](items []T, limit int64) []T {
	if limit > 0 && int64(len(items)) > limit {
		return items[:limit]
	}
	return items
}
