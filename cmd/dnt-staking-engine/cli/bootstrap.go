package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/consumer"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/priceclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clock"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	dbmodel "github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/internal/services"
)

// engine is everything a command needs to run engine operations.
type engine struct {
	service    *services.Service
	store      *governance.Store
	clock      clock.Clock
	disconnect func()
}

func loadConfig() (*config.Config, error) {
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("error while loading config file %s: %w", cfgPath, err)
	}
	return cfg, nil
}

// newDatabase opens the configured store, wrapped with latency metrics.
func newDatabase(ctx context.Context, cfg *config.DbConfig) (db.DbInterface, func(), error) {
	if cfg.Backend == config.BackendMemory {
		log.Ctx(ctx).Warn().Msg("using the in-memory store, state is lost on exit")
		return db.NewDbWithMetrics(db.NewMemoryDatabase()), func() {}, nil
	}

	if err := dbmodel.Setup(ctx, cfg); err != nil {
		return nil, nil, fmt.Errorf("error while setting up db model: %w", err)
	}
	dbClient, err := db.New(ctx, *cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error while creating db client: %w", err)
	}
	if err := dbClient.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("error while connecting to db: %w", err)
	}

	disconnect := func() {
		if err := dbClient.Disconnect(context.Background()); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to disconnect db client")
		}
	}
	return db.NewDbWithMetrics(dbClient), disconnect, nil
}

// newEngine wires the service. publisher may be nil.
func newEngine(ctx context.Context, cfg *config.Config, publisher consumer.EventConsumer) (*engine, error) {
	dbClient, disconnect, err := newDatabase(ctx, &cfg.Db)
	if err != nil {
		return nil, err
	}

	var hedge hedgeclient.HedgeInterface = hedgeclient.NewHedgeClient(&cfg.Feeds.Hedge)
	hedge = hedgeclient.NewHedgeClientWithMetrics(hedge)

	var pricing priceclient.PricingInterface = priceclient.NewPriceClient(&cfg.Feeds.Pricing)
	pricing = priceclient.NewPriceClientWithMetrics(pricing)

	clk := clock.NewSystemClock()
	store := governance.NewStore(dbClient)

	return &engine{
		service:    services.NewService(cfg, dbClient, hedge, pricing, publisher, store, clk),
		store:      store,
		clock:      clk,
		disconnect: disconnect,
	}, nil
}
