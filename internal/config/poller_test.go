package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollerConfig_Validate(t *testing.T) {
	t.Run("all required fields set", func(t *testing.T) {
		cfg := &PollerConfig{
			RewardDistributionInterval: 1 * time.Minute,
			RiskEvaluationInterval:     2 * time.Minute,
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("risk evaluation timer disabled", func(t *testing.T) {
		cfg := &PollerConfig{
			RewardDistributionInterval: 1 * time.Minute,
			RiskEvaluationInterval:     0,
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("reward distribution interval not set - should error", func(t *testing.T) {
		cfg := &PollerConfig{
			RiskEvaluationInterval: 2 * time.Minute,
		}
		err := cfg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "reward-distribution-interval must be positive")
	})

	t.Run("negative risk evaluation interval - should error", func(t *testing.T) {
		cfg := &PollerConfig{
			RewardDistributionInterval: 1 * time.Minute,
			RiskEvaluationInterval:     -1 * time.Minute,
		}
		require.Error(t, cfg.Validate())
	})
}
