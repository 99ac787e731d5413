//go:build e2e

package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dnt-protocol/dnt-staking-engine/e2etest/container"
	"github.com/dnt-protocol/dnt-staking-engine/internal/api"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/priceclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clock"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
	"github.com/dnt-protocol/dnt-staking-engine/internal/services"
	"github.com/dnt-protocol/dnt-staking-engine/testutil"
)

var (
	eventuallyWaitTimeOut = 40 * time.Second
	eventuallyPollTime    = 500 * time.Millisecond
)

// feedStub serves the hedge and pricing feeds from mutable in-memory
// values.
type feedStub struct {
	mu       sync.Mutex
	profit   hedgeclient.ProfitReport
	exposure hedgeclient.ExposureReport
	losses   []hedgeclient.PositionLoss
	prices   map[string]string
}

func (f *feedStub) SetExposure(netDelta int64, perUnit uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exposure = hedgeclient.ExposureReport{NetDelta: netDelta, DeltaPerUnit: perUnit}
}

func (f *feedStub) SetLosses(losses ...hedgeclient.PositionLoss) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.losses = losses
}

func (f *feedStub) router() http.Handler {
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Get("/v1/profit", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.profit)
	})
	r.Get("/v1/exposure", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.exposure)
	})
	r.Get("/v1/positions/losses", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, hedgeclient.PositionLossReport{Positions: f.losses})
	})
	r.Get("/v1/prices/{asset}", func(w http.ResponseWriter, r *http.Request) {
		asset := chi.URLParam(r, "asset")
		f.mu.Lock()
		price, ok := f.prices[asset]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"message":"unknown asset"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"asset": asset, "price": price})
	})
	return r
}

type TestManager struct {
	Config       *config.Config
	DbClient     *db.Database
	QueueManager *queue.QueueManager
	Service      *services.Service
	Feeds        *feedStub
	API          *httptest.Server
}

// StartManager runs mongo and rabbitmq in docker and wires a full engine
// against them. The governance consumer runs until the test ends.
func StartManager(t *testing.T) *TestManager {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	manager, err := container.NewManager(t)
	require.NoError(t, err)

	dbCfg, err := manager.RunMongo("dnt-e2e")
	require.NoError(t, err)
	queueCfg, err := manager.RunRabbitMQ()
	require.NoError(t, err)

	feeds := &feedStub{
		prices: map[string]string{"SOL": "2.5", "USDC": "1.0"},
	}
	feedServer := httptest.NewServer(feeds.router())
	t.Cleanup(feedServer.Close)

	cfg := config.Default()
	cfg.Db = *dbCfg
	cfg.Queue = *queueCfg
	cfg.Engine.PrincipalPrefix = testutil.PrincipalPrefix
	cfg.Engine.MinStakeDuration = time.Second
	cfg.Risk.EvaluateAfterMutation = false
	for _, feed := range []*config.FeedClientConfig{&cfg.Feeds.Hedge, &cfg.Feeds.Pricing} {
		feed.URL = feedServer.URL
		feed.Timeout = 5 * time.Second
		feed.RetryInterval = 100 * time.Millisecond
	}
	require.NoError(t, cfg.Validate())

	require.NoError(t, model.Setup(ctx, &cfg.Db))
	dbClient, err := db.New(ctx, cfg.Db)
	require.NoError(t, err)
	require.NoError(t, dbClient.Ping(ctx))
	t.Cleanup(func() { _ = dbClient.Disconnect(context.Background()) })

	qm, err := queue.NewQueueManager(&cfg.Queue, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(qm.Shutdown)

	clk := clock.NewSystemClock()
	store := governance.NewStore(dbClient)
	svc := services.NewService(
		cfg,
		dbClient,
		hedgeclient.NewHedgeClient(&cfg.Feeds.Hedge),
		priceclient.NewPriceClient(&cfg.Feeds.Pricing),
		qm,
		store,
		clk,
	)
	_, _, err = svc.InitGlobalState(ctx)
	require.NoError(t, err)

	authority, err := governance.NewAuthority(store, clk, &cfg.Engine)
	require.NoError(t, err)
	go func() {
		_ = governance.NewConsumer(qm, authority).Start(ctx)
	}()

	apiServer := httptest.NewServer(api.New(&cfg.API, svc, store).Handler())
	t.Cleanup(apiServer.Close)

	return &TestManager{
		Config:       cfg,
		DbClient:     dbClient,
		QueueManager: qm,
		Service:      svc,
		Feeds:        feeds,
		API:          apiServer,
	}
}

// Do calls the engine api and decodes the data field of the response into
// out when it is not nil. The status code is returned.
func (tm *TestManager) Do(t *testing.T, method, path, principal string, body, out any) int {
	t.Helper()

	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req, err := http.NewRequest(method, tm.API.URL+path, &reader)
	require.NoError(t, err)
	if principal != "" {
		req.Header.Set(api.PrincipalHeader, principal)
	}

	resp, err := tm.API.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		envelope := struct {
			Data any `json:"data"`
		}{Data: out}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp.StatusCode
}
