package governance

import (
	"context"
	"testing"
	"time"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clock"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingDB loses the first losses governance writes to a concurrent writer.
type racingDB struct {
	*db.MemoryDatabase
	losses int
	calls  int
}

func (r *racingDB) ApplyGovernanceUpdate(
	ctx context.Context, expectedVersion uint64, update *model.GovernanceUpdateDocument,
) (*model.GlobalStateDocument, error) {
	r.calls++
	if r.calls <= r.losses {
		return nil, &db.ConflictError{Key: "global_state", Message: "lost race"}
	}
	return r.MemoryDatabase.ApplyGovernanceUpdate(ctx, expectedVersion, update)
}

func testEngineConfig() *config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.UpdateRetryInterval = time.Millisecond
	return cfg
}

func newAuthority(t *testing.T, dbClient db.DbInterface) (*Store, *Authority) {
	t.Helper()

	store := NewStore(dbClient)
	authority, err := NewAuthority(store, clock.NewManual(time.Unix(1_700_000_000, 0)), testEngineConfig())
	require.NoError(t, err)
	return store, authority
}

func setup(t *testing.T) (*db.MemoryDatabase, *Store, *Authority) {
	t.Helper()

	memDB := db.NewMemoryDatabase()
	require.NoError(t, memDB.InitGlobalState(t.Context(), model.NewGlobalStateDocument(1_700_000_000, 100)))

	store, authority := newAuthority(t, memDB)
	return memDB, store, authority
}

func TestNewAuthority(t *testing.T) {
	store := NewStore(db.NewMemoryDatabase())
	clk := clock.NewManual(time.Unix(0, 0))

	_, err := NewAuthority(store, clk, testEngineConfig())
	require.NoError(t, err)

	// the write capability is issued once per store
	_, err = NewAuthority(store, clk, testEngineConfig())
	require.Error(t, err)

	_, err = NewAuthority(nil, clk, testEngineConfig())
	require.Error(t, err)
}

func TestApplyGovernanceUpdate(t *testing.T) {
	ctx := t.Context()

	t.Run("ok", func(t *testing.T) {
		_, store, authority := setup(t)

		state, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 250)
		require.NoError(t, err)
		assert.EqualValues(t, 250, state.AllowedDeltaThreshold)

		threshold, err := store.GetThreshold(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 250, threshold)

		history, err := store.History(ctx, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.EqualValues(t, 100, history[0].OldThreshold)
		assert.EqualValues(t, 250, history[0].NewThreshold)
	})
	t.Run("zero threshold is rejected", func(t *testing.T) {
		_, store, authority := setup(t)

		_, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 0)
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.InvalidParameter))

		threshold, err := store.GetThreshold(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 100, threshold)
	})
	t.Run("replayed proposal is a no-op", func(t *testing.T) {
		_, store, authority := setup(t)

		_, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 250)
		require.NoError(t, err)
		_, err = authority.ApplyGovernanceUpdate(ctx, "prop-1", 300)
		require.NoError(t, err)

		threshold, err := store.GetThreshold(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 250, threshold)
	})
	t.Run("zero value authority cannot write", func(t *testing.T) {
		var authority Authority
		_, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 250)
		require.Error(t, err)
	})
	t.Run("not initialized", func(t *testing.T) {
		store, authority := newAuthority(t, db.NewMemoryDatabase())

		_, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 250)
		assert.True(t, types.IsErrorCode(err, types.NotFound))
		_, err = store.GetThreshold(ctx)
		assert.True(t, types.IsErrorCode(err, types.NotFound))
	})
	t.Run("lost races are retried", func(t *testing.T) {
		memDB := db.NewMemoryDatabase()
		require.NoError(t, memDB.InitGlobalState(ctx, model.NewGlobalStateDocument(0, 100)))
		racing := &racingDB{MemoryDatabase: memDB, losses: 2}
		store, authority := newAuthority(t, racing)

		state, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 250)
		require.NoError(t, err)
		assert.EqualValues(t, 250, state.AllowedDeltaThreshold)
		assert.Equal(t, 3, racing.calls)

		threshold, err := store.GetThreshold(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 250, threshold)
	})
	t.Run("retry budget is bounded by the engine config", func(t *testing.T) {
		memDB := db.NewMemoryDatabase()
		require.NoError(t, memDB.InitGlobalState(ctx, model.NewGlobalStateDocument(0, 100)))
		racing := &racingDB{MemoryDatabase: memDB, losses: 100}
		store, authority := newAuthority(t, racing)

		_, err := authority.ApplyGovernanceUpdate(ctx, "prop-1", 250)
		assert.True(t, types.IsErrorCode(err, types.ConcurrentUpdateConflict))
		assert.Equal(t, int(testEngineConfig().MaxUpdateRetries)+1, racing.calls)

		history, err := store.History(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestConsumerHandle(t *testing.T) {
	ctx := t.Context()
	_, store, authority := setup(t)
	consumer := NewConsumer(nil, authority)

	// rejected updates are acknowledged
	require.NoError(t, consumer.Handle(ctx, &queue.GovernanceUpdateMessage{ProposalID: "prop-0", NewThreshold: 0}))
	threshold, err := store.GetThreshold(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, threshold)

	require.NoError(t, consumer.Handle(ctx, &queue.GovernanceUpdateMessage{ProposalID: "prop-1", NewThreshold: 40}))
	threshold, err = store.GetThreshold(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 40, threshold)
}
