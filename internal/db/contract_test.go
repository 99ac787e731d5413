package db_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/testutil"
)

const genesis = int64(1_700_000_000)

// testStore behaviour every DbInterface implementation has to provide.
// newStore must return an empty store.
func testStore(t *testing.T, newStore func(t *testing.T) db.DbInterface) {
	t.Run("global state", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		_, err := store.GetGlobalState(ctx)
		require.True(t, db.IsNotFoundError(err))

		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))
		err = store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100))
		require.True(t, db.IsDuplicateKeyError(err))

		state, err := store.GetGlobalState(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), state.AllowedDeltaThreshold)
		assert.Equal(t, uint64(1), state.Version)

		updated, err := store.UpdateGlobalState(ctx, state.Version,
			db.WithLastUpdate(genesis+10),
			db.WithRewardIndex("0.5"),
		)
		require.NoError(t, err)
		assert.Equal(t, genesis+10, updated.LastUpdate)
		assert.Equal(t, genesis, updated.LastRebalance)
		assert.Equal(t, uint64(1), updated.RewardEpoch)
		assert.Equal(t, state.Version+1, updated.Version)
		index, err := updated.Index()
		require.NoError(t, err)
		assert.Equal(t, "0.500000000000000000", index.String())

		_, err = store.UpdateGlobalState(ctx, state.Version, db.WithLastRebalance(genesis+20))
		require.True(t, db.IsConflictError(err))

		// the watermark alone does not move the epoch
		updated, err = store.UpdateGlobalState(ctx, updated.Version, db.WithLastRebalance(genesis+20))
		require.NoError(t, err)
		assert.Equal(t, genesis+20, updated.LastRebalance)
		assert.Equal(t, uint64(1), updated.RewardEpoch)
	})

	t.Run("governance update", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))

		update := &model.GovernanceUpdateDocument{
			ID:           "update-1",
			ProposalID:   "proposal-1",
			OldThreshold: 100,
			NewThreshold: 250,
			AppliedAt:    genesis,
		}
		state, err := store.ApplyGovernanceUpdate(ctx, 1, update)
		require.NoError(t, err)
		assert.Equal(t, uint64(250), state.AllowedDeltaThreshold)

		again := *update
		again.ID = "update-2"
		_, err = store.ApplyGovernanceUpdate(ctx, state.Version, &again)
		require.True(t, db.IsDuplicateKeyError(err))

		stale := &model.GovernanceUpdateDocument{ID: "update-3", ProposalID: "proposal-2", NewThreshold: 300}
		_, err = store.ApplyGovernanceUpdate(ctx, 1, stale)
		require.True(t, db.IsConflictError(err))

		updates, err := store.FindGovernanceUpdates(ctx, 10)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, "proposal-1", updates[0].ProposalID)

		state, err = store.GetGlobalState(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(250), state.AllowedDeltaThreshold)
	})

	t.Run("account commit", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))
		owner := testutil.RandomPrincipal(t)

		_, err := store.GetUserAccount(ctx, owner)
		require.True(t, db.IsNotFoundError(err))

		account := model.NewUserAccountDocument(owner)
		account.Amount = 40
		account.CollateralMix[types.AssetDNT] = 40
		state, err := store.CommitAccount(ctx, &db.AccountCommit{
			Account:        account,
			StakedIncrease: 40,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(40), state.TotalStaked)
		assert.Equal(t, uint64(1), account.Version)

		// a second create loses
		_, err = store.CommitAccount(ctx, &db.AccountCommit{
			Account:        model.NewUserAccountDocument(owner),
			StakedIncrease: 1,
		})
		require.True(t, db.IsConflictError(err))

		stored, err := store.GetUserAccount(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), stored.Amount)
		assert.Equal(t, uint64(40), stored.CollateralMix[types.AssetDNT])

		stored.Amount = 15
		stored.CollateralMix[types.AssetDNT] = 15
		record := &model.LiquidationRecord{
			ID:                 "liq-1",
			Owner:              owner,
			Quantity:           25,
			Reason:             types.ReasonRiskThresholdExceeded,
			Timestamp:          genesis,
			ReleasedCollateral: map[types.AssetKind]uint64{types.AssetDNT: 25},
		}
		state, err = store.CommitAccount(ctx, &db.AccountCommit{
			Account:        stored,
			PrevVersion:    1,
			StakedDecrease: 25,
			Liquidation:    record,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(15), state.TotalStaked)

		// stale version
		_, err = store.CommitAccount(ctx, &db.AccountCommit{
			Account:        stored,
			PrevVersion:    1,
			StakedDecrease: 1,
		})
		require.True(t, db.IsConflictError(err))

		records, err := store.FindLiquidationRecords(ctx, owner, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, uint64(25), records[0].Quantity)
		assert.Equal(t, uint64(25), records[0].ReleasedCollateral[types.AssetDNT])

		sum, err := store.SumAccountAmounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), sum)
	})

	t.Run("account commit guards", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))

		account := model.NewUserAccountDocument(testutil.RandomPrincipal(t))
		_, err := store.CommitAccount(ctx, &db.AccountCommit{
			Account:     account,
			RewardEpoch: 3,
		})
		require.True(t, db.IsConflictError(err), "stale reward epoch")

		_, err = store.CommitAccount(ctx, &db.AccountCommit{
			Account:        account,
			StakedDecrease: 1,
		})
		require.True(t, db.IsConflictError(err), "negative total staked")

		_, err = store.CommitAccount(ctx, &db.AccountCommit{Account: model.NewUserAccountDocument("")})
		require.Error(t, err)

		_, err = store.GetUserAccount(ctx, account.Owner)
		require.True(t, db.IsNotFoundError(err))
		state, err := store.GetGlobalState(ctx)
		require.NoError(t, err)
		assert.Zero(t, state.TotalStaked)
	})

	t.Run("account commit with accrual", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))
		initial, err := store.GetGlobalState(ctx)
		require.NoError(t, err)

		account := model.NewUserAccountDocument(testutil.RandomPrincipal(t))
		account.Amount = 10
		account.CollateralMix[types.AssetDNT] = 10
		_, err = store.CommitAccount(ctx, &db.AccountCommit{
			Account:        account,
			StakedIncrease: 10,
			Accrual: &db.Accrual{
				GlobalVersion: initial.Version + 1,
				LastUpdate:    genesis + 10,
				RewardIndex:   "0.5",
			},
		})
		require.True(t, db.IsConflictError(err), "stale global version")
		_, err = store.GetUserAccount(ctx, account.Owner)
		require.True(t, db.IsNotFoundError(err))

		state, err := store.CommitAccount(ctx, &db.AccountCommit{
			Account:        account,
			StakedIncrease: 10,
			Accrual: &db.Accrual{
				GlobalVersion: initial.Version,
				LastUpdate:    genesis + 10,
				RewardIndex:   "0.5",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(10), state.TotalStaked)
		assert.Equal(t, genesis+10, state.LastUpdate)
		assert.Equal(t, uint64(1), state.RewardEpoch)
		assert.Equal(t, initial.Version+1, state.Version)
		index, err := state.Index()
		require.NoError(t, err)
		assert.Equal(t, "0.500000000000000000", index.String())

		// a window that leaves the index alone only moves the watermark
		state, err = store.CommitAccount(ctx, &db.AccountCommit{
			Account:     account,
			PrevVersion: account.Version,
			RewardEpoch: state.RewardEpoch,
			Accrual: &db.Accrual{
				GlobalVersion: state.Version,
				LastUpdate:    genesis + 20,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, genesis+20, state.LastUpdate)
		assert.Equal(t, uint64(1), state.RewardEpoch)
	})

	t.Run("ranking and dust", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))

		seed := []struct {
			owner       string
			amount      uint64
			stakedSince int64
		}{
			{"dnt1c", 50, genesis + 2},
			{"dnt1a", 50, genesis + 2},
			{"dnt1b", 50, genesis + 1},
			{"dnt1d", 80, genesis + 9},
			{"dnt1e", 0, genesis},
		}
		for _, s := range seed {
			commitNew(t, ctx, store, s.owner, s.amount, s.stakedSince)
		}

		accounts, err := store.FindStakedAccounts(ctx)
		require.NoError(t, err)
		owners := make([]string, len(accounts))
		for i, account := range accounts {
			owners[i] = account.Owner
		}
		assert.Equal(t, []string{"dnt1d", "dnt1b", "dnt1a", "dnt1c"}, owners)

		deleted, err := store.DeleteDustAccounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
		_, err = store.GetUserAccount(ctx, "dnt1e")
		require.True(t, db.IsNotFoundError(err))

		sum, err := store.SumAccountAmounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(230), sum)
	})

	t.Run("liquidation records", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		require.NoError(t, store.InitGlobalState(ctx, model.NewGlobalStateDocument(genesis, 100)))

		commitNew(t, ctx, store, "dnt1a", 30, genesis)
		commitNew(t, ctx, store, "dnt1b", 30, genesis)
		liquidate(t, ctx, store, "dnt1a", 2, genesis+1)
		liquidate(t, ctx, store, "dnt1b", 2, genesis+2)
		liquidate(t, ctx, store, "dnt1a", 3, genesis+3)

		records, err := store.FindLiquidationRecords(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, genesis+3, records[0].Timestamp)
		assert.Equal(t, genesis+1, records[2].Timestamp)

		records, err = store.FindLiquidationRecords(ctx, "dnt1a", 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, uint64(3), records[0].Quantity)
	})
}

func commitNew(t *testing.T, ctx context.Context, store db.DbInterface, owner string, amount uint64, stakedSince int64) {
	t.Helper()
	account := model.NewUserAccountDocument(owner)
	account.Amount = amount
	account.StakedSince = stakedSince
	if amount > 0 {
		account.CollateralMix[types.AssetDNT] = amount
	}
	_, err := store.CommitAccount(ctx, &db.AccountCommit{Account: account, StakedIncrease: amount})
	require.NoError(t, err)
}

func liquidate(t *testing.T, ctx context.Context, store db.DbInterface, owner string, quantity uint64, ts int64) {
	t.Helper()
	account, err := store.GetUserAccount(ctx, owner)
	require.NoError(t, err)
	prev := account.Version
	account.Amount -= quantity
	account.CollateralMix[types.AssetDNT] -= quantity
	_, err = store.CommitAccount(ctx, &db.AccountCommit{
		Account:        account,
		PrevVersion:    prev,
		StakedDecrease: quantity,
		Liquidation: &model.LiquidationRecord{
			ID:        owner + "-" + strconv.FormatInt(ts, 10),
			Owner:     owner,
			Quantity:  quantity,
			Reason:    types.ReasonRiskThresholdExceeded,
			Timestamp: ts,
		},
	})
	require.NoError(t, err)
}
