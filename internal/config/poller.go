package config

import (
	"errors"
	"time"
)

const (
	defaultRewardDistributionInterval = 5 * time.Minute
	defaultRiskEvaluationInterval     = 1 * time.Minute
	defaultLossCheckInterval          = 1 * time.Minute
)

type PollerConfig struct {
	RewardDistributionInterval time.Duration `mapstructure:"reward-distribution-interval"`
	RiskEvaluationInterval     time.Duration `mapstructure:"risk-evaluation-interval"`
	LossCheckInterval          time.Duration `mapstructure:"loss-check-interval"`
}

func DefaultPollerConfig() *PollerConfig {
	return &PollerConfig{
		RewardDistributionInterval: defaultRewardDistributionInterval,
		RiskEvaluationInterval:     defaultRiskEvaluationInterval,
		LossCheckInterval:          defaultLossCheckInterval,
	}
}

func (cfg *PollerConfig) Validate() error {
	if cfg.RewardDistributionInterval <= 0 {
		return errors.New("reward-distribution-interval must be positive")
	}

	if cfg.RiskEvaluationInterval < 0 {
		return errors.New("risk-evaluation-interval cannot be negative")
	}

	if cfg.LossCheckInterval < 0 {
		return errors.New("loss-check-interval cannot be negative")
	}

	// zero risk evaluation or loss check interval disables the timer trigger
	return nil
}
