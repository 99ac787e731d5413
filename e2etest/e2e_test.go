//go:build e2e

package e2etest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
	"github.com/dnt-protocol/dnt-staking-engine/internal/services"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
	"github.com/dnt-protocol/dnt-staking-engine/testutil"
)

func openChannel(t *testing.T, tm *TestManager) *amqp.Channel {
	t.Helper()

	uri, err := amqp.ParseURI(tm.Config.Queue.URL)
	require.NoError(t, err)
	uri.Username = tm.Config.Queue.User
	uri.Password = tm.Config.Queue.Password

	conn, err := amqp.Dial(uri.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)
	return ch
}

func TestGovernanceUpdateFromQueue(t *testing.T) {
	tm := StartManager(t)
	ch := openChannel(t, tm)

	publish := func(msg any) {
		body, err := json.Marshal(msg)
		require.NoError(t, err)
		err = ch.PublishWithContext(t.Context(), "", tm.Config.Queue.GovernanceQueue, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		require.NoError(t, err)
	}

	// a rejected update is acknowledged and must not block the next one
	publish(&queue.GovernanceUpdateMessage{ProposalID: "prop-0", NewThreshold: 0})
	publish(&queue.GovernanceUpdateMessage{ProposalID: "prop-1", NewThreshold: 750})

	require.Eventually(t, func() bool {
		var state services.GlobalSnapshot
		status := tm.Do(t, http.MethodGet, "/v1/global-state", "", nil, &state)
		return status == http.StatusOK && state.AllowedDeltaThreshold == 750
	}, eventuallyWaitTimeOut, eventuallyPollTime)

	var updates []map[string]any
	status := tm.Do(t, http.MethodGet, "/v1/governance/updates", "", nil, &updates)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, updates, 1)
	assert.Equal(t, "prop-1", updates[0]["proposal_id"])
	assert.EqualValues(t, 750, updates[0]["new_threshold"])
}

func TestLiquidationFlow(t *testing.T) {
	tm := StartManager(t)
	ch := openChannel(t, tm)

	deliveries, err := ch.Consume(tm.Config.Queue.LiquidationQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	small := testutil.RandomPrincipal(t)
	large := testutil.RandomPrincipal(t)

	var res services.MutationResult
	status := tm.Do(t, http.MethodPost, "/v1/stake", small, map[string]any{"asset": "DNT", "quantity": 100}, &res)
	require.Equal(t, http.StatusOK, status)
	status = tm.Do(t, http.MethodPost, "/v1/stake", large, map[string]any{"asset": "SOL", "quantity": 50}, &res)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 125, res.Account.Amount)
	require.EqualValues(t, 225, res.Global.TotalStaked)

	// 200 over the default threshold of 100 at one unit per staked unit
	tm.Feeds.SetExposure(-300, 1)

	var report services.EvaluationReport
	status = tm.Do(t, http.MethodPost, "/v1/risk/evaluate", "", nil, &report)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 200, report.Required)
	assert.EqualValues(t, 200, report.Unwound)
	assert.False(t, report.ResidualBreach)
	require.Len(t, report.Liquidations, 2)
	assert.EqualValues(t, 25, report.Global.TotalStaked)

	expected := map[string]struct {
		quantity uint64
		released map[string]uint64
	}{
		large: {125, map[string]uint64{"SOL": 50}},
		small: {75, map[string]uint64{"DNT": 75}},
	}

	received := make(map[string]*queue.LiquidationMessage)
	ctx, cancel := context.WithTimeout(t.Context(), eventuallyWaitTimeOut)
	defer cancel()
	for len(received) < len(expected) {
		select {
		case <-ctx.Done():
			t.Fatalf("received %d of %d liquidation messages", len(received), len(expected))
		case d := <-deliveries:
			var msg queue.LiquidationMessage
			require.NoError(t, json.Unmarshal(d.Body, &msg))
			received[msg.Owner] = &msg
		}
	}

	for owner, want := range expected {
		msg := received[owner]
		require.NotNil(t, msg, "no liquidation for %s", owner)
		assert.Equal(t, want.quantity, msg.Quantity)
		assert.Equal(t, want.released, msg.ReleasedCollateral)
		assert.Equal(t, types.ReasonRiskThresholdExceeded.String(), msg.Reason)
		assert.EqualValues(t, -300, msg.NetDelta)
		assert.EqualValues(t, 100, msg.Threshold)
	}

	var records []map[string]any
	status = tm.Do(t, http.MethodGet, fmt.Sprintf("/v1/liquidations?principal=%s", small), "", nil, &records)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, records, 1)
	assert.EqualValues(t, 75, records[0]["quantity"])

	// forced unstakes leave the lockup of the remaining stake untouched
	time.Sleep(tm.Config.Engine.MinStakeDuration)
	var account services.MutationResult
	status = tm.Do(t, http.MethodPost, "/v1/unstake", small, map[string]any{"quantity": 25}, &account)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, account.Global.TotalStaked)
}

func TestLossLiquidationFlow(t *testing.T) {
	tm := StartManager(t)
	ch := openChannel(t, tm)

	deliveries, err := ch.Consume(tm.Config.Queue.LiquidationQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	losing := testutil.RandomPrincipal(t)
	healthy := testutil.RandomPrincipal(t)
	for _, owner := range []string{losing, healthy} {
		var res services.MutationResult
		status := tm.Do(t, http.MethodPost, "/v1/stake", owner, map[string]any{"asset": "DNT", "quantity": 100}, &res)
		require.Equal(t, http.StatusOK, status)
	}

	tm.Feeds.SetLosses(
		hedgeclient.PositionLoss{Owner: losing, LossPercent: 65},
		hedgeclient.PositionLoss{Owner: healthy, LossPercent: 50},
	)

	var report services.LossReport
	status := tm.Do(t, http.MethodPost, "/v1/risk/liquidate-losses", "", nil, &report)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, report.Liquidations, 1)
	assert.EqualValues(t, 100, report.Unwound)

	ctx, cancel := context.WithTimeout(t.Context(), eventuallyWaitTimeOut)
	defer cancel()
	select {
	case <-ctx.Done():
		t.Fatal("no liquidation message received")
	case d := <-deliveries:
		var msg queue.LiquidationMessage
		require.NoError(t, json.Unmarshal(d.Body, &msg))
		assert.Equal(t, losing, msg.Owner)
		assert.EqualValues(t, 100, msg.Quantity)
		assert.Equal(t, types.ReasonMaxLossExceeded.String(), msg.Reason)
		assert.EqualValues(t, 65, msg.LossPercent)
	}

	var state services.GlobalSnapshot
	status = tm.Do(t, http.MethodGet, "/v1/global-state", "", nil, &state)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100, state.TotalStaked)
}
