package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dnt-protocol/dnt-staking-engine/pkg"
)

const (
	defaultConfigFileName = "config.yml"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use: "dnt-staking-engine",
	}
)

func Setup() error {
	homePath, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	defaultConfigPath := pkg.Getenv("DNT_CONFIG", getDefaultConfigFile(homePath, defaultConfigFileName))

	rootCmd.AddCommand(StartServerCmd())
	rootCmd.AddCommand(InitStateCmd())
	rootCmd.AddCommand(EvaluateCmd())
	rootCmd.AddCommand(LiquidateLossesCmd())
	rootCmd.AddCommand(DistributeRewardsCmd())
	rootCmd.AddCommand(CheckInvariantCmd())
	rootCmd.AddCommand(PurgeDustCmd())
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, fmt.Sprintf("config file (default %s)", defaultConfigPath))

	level, err := zerolog.ParseLevel(pkg.Getenv("LOG_LEVEL", zerolog.InfoLevel.String()))
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// commands log through log.Ctx, so the global logger is attached to the root context
	ctx := log.Logger.With().Timestamp().Logger().Level(level).WithContext(context.Background())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return err
	}

	return nil
}

func getDefaultConfigFile(homePath, filename string) string {
	return filepath.Join(homePath, filename)
}

func GetConfigPath() string {
	return cfgPath
}
