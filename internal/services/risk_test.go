package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/testutil"
	"github.com/dnt-protocol/dnt-staking-engine/tests/mocks"
)

// stakeStaggered stakes each amount one second after the previous one, so
// earlier owners have the older lockup start.
func stakeStaggered(t *testing.T, env *testEnv, amounts ...uint64) []string {
	t.Helper()
	owners := make([]string, len(amounts))
	for i, amount := range amounts {
		if i > 0 {
			env.clock.Advance(time.Second)
		}
		owners[i] = testutil.RandomPrincipal(t)
		_, err := env.srv.Stake(t.Context(), owners[i], types.AssetDNT, amount)
		require.NoError(t, err)
	}
	return owners
}

func TestEvaluateLiquidatesOldestOfEqualAccounts(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 500, 500)
	env.fake().setExposure(600, 0)
	env.clock.Advance(time.Second)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), report.Threshold)
	assert.Equal(t, uint64(500), report.Required)
	assert.Equal(t, uint64(500), report.Unwound)
	assert.False(t, report.ResidualBreach)
	require.Len(t, report.Liquidations, 1)

	record := report.Liquidations[0]
	assert.Equal(t, owners[0], record.Owner)
	assert.Equal(t, uint64(500), record.Quantity)
	assert.Equal(t, types.ReasonRiskThresholdExceeded, record.Reason)
	assert.Equal(t, int64(600), record.NetDelta)
	assert.Equal(t, uint64(100), record.Threshold)
	assert.Equal(t, map[types.AssetKind]uint64{types.AssetDNT: 500}, record.ReleasedCollateral)

	assert.Zero(t, env.account(t, owners[0]).Amount)
	assert.Equal(t, uint64(500), env.account(t, owners[1]).Amount)
	assert.Equal(t, env.clock.Now().Unix(), env.global(t).LastRebalance)
	assert.Equal(t, env.clock.Now().Unix(), report.Global.LastRebalance)

	records, err := env.srv.GetLiquidations(t.Context(), owners[0], 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
	env.requireInvariant(t)
}

func TestEvaluateUnwindsLargestFirst(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 30, 50)
	// negative exposure is measured by magnitude
	env.fake().setExposure(-180, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(80), report.Required)
	assert.Equal(t, uint64(80), report.Unwound)
	require.Len(t, report.Liquidations, 2)
	assert.Equal(t, owners[1], report.Liquidations[0].Owner)
	assert.Equal(t, uint64(50), report.Liquidations[0].Quantity)
	assert.Equal(t, owners[0], report.Liquidations[1].Owner)
	assert.Equal(t, uint64(30), report.Liquidations[1].Quantity)
	assert.Zero(t, env.global(t).TotalStaked)
	env.requireInvariant(t)
}

func TestEvaluatePartialUnwind(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 500)
	// 505 excess at 10 per unit rounds up to 51 units
	env.fake().setExposure(605, 10)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), report.DeltaPerUnit)
	assert.Equal(t, uint64(51), report.Required)
	require.Len(t, report.Liquidations, 1)
	assert.Equal(t, uint64(51), report.Liquidations[0].Quantity)
	assert.Equal(t, uint64(449), env.account(t, owners[0]).Amount)
	env.requireInvariant(t)
}

func TestEvaluateIgnoresLockup(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 300)
	env.fake().setExposure(150, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Liquidations, 1)
	assert.Equal(t, uint64(250), env.account(t, owners[0]).Amount)
}

func TestEvaluateLiquidationLimit(t *testing.T) {
	env := newTestEnv(t, nil, nil, withConfig(func(cfg *config.Config) {
		cfg.Risk.MaxLiquidationsPerPass = 1
	}))
	owners := stakeStaggered(t, env, 30, 50)
	env.fake().setExposure(180, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(80), report.Required)
	assert.Equal(t, uint64(50), report.Unwound)
	assert.True(t, report.ResidualBreach)
	require.Len(t, report.Liquidations, 1)
	assert.Equal(t, uint64(30), env.account(t, owners[0]).Amount)
	assert.Zero(t, env.account(t, owners[1]).Amount)
}

func TestEvaluateResidualBreachWhenStakeRunsOut(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	stakeStaggered(t, env, 40)
	env.fake().setExposure(1000, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(900), report.Required)
	assert.Equal(t, uint64(40), report.Unwound)
	assert.True(t, report.ResidualBreach)
	assert.Zero(t, env.global(t).TotalStaked)
}

func TestEvaluateWithinThreshold(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 500)
	env.fake().setExposure(100, 0)
	env.clock.Advance(time.Minute)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Zero(t, report.Required)
	assert.Empty(t, report.Liquidations)
	assert.False(t, report.ResidualBreach)
	assert.Equal(t, uint64(500), env.account(t, owners[0]).Amount)
	assert.Equal(t, env.clock.Now().Unix(), env.global(t).LastRebalance)
}

func TestEvaluateUsesGovernanceThreshold(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 500)
	_, err := env.auth.ApplyGovernanceUpdate(t.Context(), "proposal-1", 700)
	require.NoError(t, err)
	env.fake().setExposure(600, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(700), report.Threshold)
	assert.Empty(t, report.Liquidations)
	assert.Equal(t, uint64(500), env.account(t, owners[0]).Amount)
}

func TestEvaluateFailsClosed(t *testing.T) {
	hedge := mocks.NewHedgeInterface(t)
	hedge.On("GetExposure", mock.Anything).Return(nil, errFeedDown).Once()
	env := newTestEnv(t, nil, nil, withHedge(hedge))
	owners := stakeAll(t, env, 500)
	before := env.global(t)
	env.clock.Advance(time.Minute)

	_, err := env.srv.Evaluate(t.Context())
	assert.Equal(t, types.ExposureFeedUnavailable, types.CodeOf(err))

	after := env.global(t)
	assert.Equal(t, before.LastRebalance, after.LastRebalance)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, uint64(500), env.account(t, owners[0]).Amount)

	records, err := env.srv.GetLiquidations(t.Context(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEvaluatePublishesLiquidations(t *testing.T) {
	publisher := mocks.NewEventConsumer(t)
	env := newTestEnv(t, nil, publisher)
	owners := stakeAll(t, env, 300)
	env.fake().setExposure(200, 0)

	publisher.On("PublishLiquidation", mock.Anything, mock.MatchedBy(func(msg *queue.LiquidationMessage) bool {
		return msg.Owner == owners[0] &&
			msg.Quantity == 100 &&
			msg.Reason == types.ReasonRiskThresholdExceeded.String() &&
			msg.ReleasedCollateral[types.AssetDNT.String()] == 100
	})).Return(nil).Once()

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Liquidations, 1)
}

func TestEvaluateSurvivesPublishFailure(t *testing.T) {
	publisher := mocks.NewEventConsumer(t)
	publisher.On("PublishLiquidation", mock.Anything, mock.Anything).Return(errFeedDown).Once()
	env := newTestEnv(t, nil, publisher)
	owners := stakeAll(t, env, 300)
	env.fake().setExposure(200, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Liquidations, 1)

	records, err := env.srv.GetLiquidations(t.Context(), owners[0], 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordRebalance(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.clock.Advance(time.Hour)

	snapshot, err := env.srv.RecordRebalance(t.Context())
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Unix(), snapshot.LastRebalance)
	assert.Equal(t, genesis.Unix(), snapshot.LastUpdate)
}

func TestEvaluateExposureAfterProfit(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 100)
	env.clock.Advance(10 * time.Second)
	env.fake().queueProfit(&hedgeclient.ProfitReport{FundingProfit: 100})
	env.fake().setExposure(250, 0)

	// the forced unstake settles pending profit before removing units
	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Liquidations, 1)
	assert.Equal(t, uint64(150), report.Liquidations[0].Quantity)
	assert.Equal(t, uint64(50), env.account(t, owners[0]).Amount)
	env.requireInvariant(t)
}

func TestEvaluateLiquidatesWhenProfitFeedDown(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	owners := stakeStaggered(t, env, 500)
	before := env.global(t)
	env.clock.Advance(10 * time.Second)
	env.fake().profitErr = errFeedDown
	env.fake().setExposure(1000, 0)

	report, err := env.srv.Evaluate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(900), report.Required)
	assert.Equal(t, uint64(500), report.Unwound)
	assert.True(t, report.ResidualBreach)
	require.Len(t, report.Liquidations, 1)
	assert.Equal(t, uint64(500), report.Liquidations[0].Quantity)
	assert.Zero(t, env.account(t, owners[0]).Amount)

	// the profit window stays pending for the next accrual
	after := env.global(t)
	assert.Equal(t, before.LastUpdate, after.LastUpdate)
	assert.Equal(t, before.RewardIndex, after.RewardIndex)
	env.requireInvariant(t)
}
