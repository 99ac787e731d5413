package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dnt-protocol/dnt-staking-engine/consumer"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/priceclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clock"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/testutil"
)

var genesis = time.Unix(1_700_000_000, 0)

// fakeHedge serves queued profit reports, one per profit window, and fixed
// exposure and position loss readings.
type fakeHedge struct {
	mu          sync.Mutex
	profits     []*hedgeclient.ProfitReport
	profitErr   error
	windows     [][2]int64
	exposure    hedgeclient.ExposureReport
	exposureErr error
	losses      []hedgeclient.PositionLoss
	lossesErr   error
}

func (f *fakeHedge) GetProfit(_ context.Context, from, to int64) (*hedgeclient.ProfitReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.profitErr != nil {
		return nil, f.profitErr
	}
	f.windows = append(f.windows, [2]int64{from, to})
	if len(f.profits) == 0 {
		return &hedgeclient.ProfitReport{}, nil
	}
	report := f.profits[0]
	f.profits = f.profits[1:]
	return report, nil
}

func (f *fakeHedge) GetExposure(context.Context) (*hedgeclient.ExposureReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.exposureErr != nil {
		return nil, f.exposureErr
	}
	report := f.exposure
	return &report, nil
}

func (f *fakeHedge) GetPositionLosses(context.Context) (*hedgeclient.PositionLossReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lossesErr != nil {
		return nil, f.lossesErr
	}
	return &hedgeclient.PositionLossReport{Positions: append([]hedgeclient.PositionLoss(nil), f.losses...)}, nil
}

func (f *fakeHedge) setLosses(losses ...hedgeclient.PositionLoss) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.losses = losses
}

func (f *fakeHedge) queueProfit(reports ...*hedgeclient.ProfitReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profits = append(f.profits, reports...)
}

func (f *fakeHedge) setExposure(netDelta int64, perUnit uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exposure = hedgeclient.ExposureReport{NetDelta: netDelta, DeltaPerUnit: perUnit}
}

type testEnv struct {
	srv   *Service
	db    *db.MemoryDatabase
	store db.DbInterface
	clock *clock.Manual
	hedge hedgeclient.HedgeInterface
	auth  *governance.Authority
	cfg   *config.Config
}

type envOption func(*testEnv)

func withHedge(h hedgeclient.HedgeInterface) envOption {
	return func(e *testEnv) { e.hedge = h }
}

// withDB puts a wrapper between the service and the memory store.
func withDB(wrap func(mem *db.MemoryDatabase) db.DbInterface) envOption {
	return func(e *testEnv) { e.store = wrap(e.db) }
}

func withConfig(f func(cfg *config.Config)) envOption {
	return func(e *testEnv) { f(e.cfg) }
}

func newTestEnv(t *testing.T, pricing priceclient.PricingInterface, publisher consumer.EventConsumer, opts ...envOption) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Engine.PrincipalPrefix = testutil.PrincipalPrefix
	cfg.Engine.UpdateRetryInterval = time.Millisecond
	cfg.Risk.EvaluateAfterMutation = false

	env := &testEnv{
		db:    db.NewMemoryDatabase(),
		clock: clock.NewManual(genesis),
		hedge: &fakeHedge{},
		cfg:   cfg,
	}
	env.store = env.db
	for _, opt := range opts {
		opt(env)
	}

	store := governance.NewStore(env.store)
	authority, err := governance.NewAuthority(store, env.clock, &cfg.Engine)
	require.NoError(t, err)
	env.auth = authority
	env.srv = NewService(cfg, env.store, env.hedge, pricing, publisher, store, env.clock)

	_, created, err := env.srv.InitGlobalState(t.Context())
	require.NoError(t, err)
	require.True(t, created)
	return env
}

func (e *testEnv) fake() *fakeHedge {
	return e.hedge.(*fakeHedge)
}

func (e *testEnv) account(t *testing.T, owner string) *model.UserAccountDocument {
	t.Helper()
	account, err := e.db.GetUserAccount(t.Context(), owner)
	require.NoError(t, err)
	return account
}

func (e *testEnv) global(t *testing.T) *model.GlobalStateDocument {
	t.Helper()
	state, err := e.db.GetGlobalState(t.Context())
	require.NoError(t, err)
	return state
}

func (e *testEnv) requireInvariant(t *testing.T) {
	t.Helper()
	require.NoError(t, e.srv.CheckInvariant(t.Context()))
}

// conflictingDB loses every account commit race.
type conflictingDB struct {
	*db.MemoryDatabase
	commits int
}

func (c *conflictingDB) CommitAccount(context.Context, *db.AccountCommit) (*model.GlobalStateDocument, error) {
	c.commits++
	return nil, &db.ConflictError{Key: "test", Message: "lost race"}
}

var errFeedDown = errors.New("feed down")
