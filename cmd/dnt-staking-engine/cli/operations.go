package cli

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
)

// EvaluateCmd runs a single risk evaluation pass. Liquidations are persisted
// but not published.
func EvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Run one risk evaluation pass",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				report, err := eng.service.Evaluate(ctx)
				if err != nil {
					return err
				}
				log.Ctx(ctx).Info().
					Int64("net_delta", report.NetDelta).
					Uint64("required", report.Required).
					Uint64("unwound", report.Unwound).
					Bool("residual_breach", report.ResidualBreach).
					Msg("evaluation finished")
				return nil
			})
		},
	}
}

// LiquidateLossesCmd runs a single loss check against the position feed.
func LiquidateLossesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "liquidate-losses",
		Short: "Force unstake accounts whose position loss exceeds the configured limit",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				report, err := eng.service.LiquidateLosses(ctx)
				if err != nil {
					return err
				}
				log.Ctx(ctx).Info().
					Int("positions", report.Positions).
					Int("liquidations", len(report.Liquidations)).
					Uint64("unwound", report.Unwound).
					Bool("truncated", report.Truncated).
					Msg("loss check finished")
				return nil
			})
		},
	}
}

func DistributeRewardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute-rewards",
		Short: "Accrue pending profit and settle every staked account",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				report, err := eng.service.DistributeRewards(ctx)
				if err != nil {
					return err
				}
				log.Ctx(ctx).Info().
					Int("accounts", report.Accounts).
					Uint64("distributed", report.Distributed).
					Msg("distribution finished")
				return nil
			})
		},
	}
}

// CheckInvariantCmd compares the global total staked with the account sum.
// Run it while no mutation is in flight.
func CheckInvariantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-invariant",
		Short: "Verify that total staked equals the sum of account amounts",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				if err := eng.service.CheckInvariant(ctx); err != nil {
					return err
				}
				log.Ctx(ctx).Info().Msg("total staked matches account amounts")
				return nil
			})
		},
	}
}

func PurgeDustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-dust",
		Short: "Delete accounts with a zero balance",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, eng *engine) error {
				_, err := eng.service.PurgeDustAccounts(ctx)
				return err
			})
		},
	}
}

func withEngine(ctx context.Context, f func(ctx context.Context, eng *engine) error) error {
	ctx = tracing.InjectTraceID(ctx)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.disconnect()

	return f(ctx, eng)
}
