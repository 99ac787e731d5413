package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dnt-protocol/dnt-staking-engine/consumer"
	"github.com/dnt-protocol/dnt-staking-engine/internal/api"
	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
)

const shutdownTimeout = 10 * time.Second

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the DNT staking engine server",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		publisher consumer.EventConsumer
		qm        *queue.QueueManager
	)
	if cfg.Queue.Enabled {
		// Create a basic zap logger
		zapLogger, err := zap.NewProduction()
		if err != nil {
			log.Fatal().Err(err).Msg("error while creating zap logger")
		}
		defer func() {
			// syncing stderr fails on some platforms, nothing to do about it
			_ = zapLogger.Sync()
		}()

		qm, err = queue.NewQueueManager(&cfg.Queue, zapLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize queue manager")
		}
		defer qm.Shutdown()
		publisher = qm
	} else {
		log.Warn().Msg("queue is disabled, liquidations are not published and governance updates are not consumed")
	}

	eng, err := newEngine(ctx, cfg, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}
	defer eng.disconnect()

	if _, _, err := eng.service.InitGlobalState(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize global state")
	}

	if qm != nil {
		authority, err := governance.NewAuthority(eng.store, eng.clock, &cfg.Engine)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to issue governance authority")
		}
		govConsumer := governance.NewConsumer(qm, authority)
		go func() {
			if err := govConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("governance consumer stopped")
			}
		}()
	}

	// initialize metrics with the metrics port from config
	metricsPort := cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	eng.service.StartPollers(ctx)

	server := api.New(&cfg.API, eng.service, eng.store)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown api server")
		}
	}()

	return server.Start(ctx)
}
