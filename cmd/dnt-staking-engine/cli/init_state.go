package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// InitStateCmd creates the protocol global state with the configured default
// threshold. Running it against an initialized store changes nothing.
// Usage: ./dnt-staking-engine init-state --config config.yml
func InitStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-state",
		Short: "Initialize the protocol global state",
		Args:  cobra.ExactArgs(0),
		RunE:  initState,
	}
}

func initState(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.disconnect()

	state, created, err := eng.service.InitGlobalState(ctx)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Bool("created", created).
		Uint64("allowed_delta_threshold", state.AllowedDeltaThreshold).
		Uint64("total_staked", state.TotalStaked).
		Msg("global state ready")
	return nil
}
