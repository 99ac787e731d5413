package config

import "errors"

const (
	defaultMaxLiquidationsPerPass = 100
	defaultMaxAllowedLossPercent  = 50
)

type RiskConfig struct {
	// EvaluateAfterMutation triggers an evaluate pass after every successful
	// stake or unstake.
	EvaluateAfterMutation  bool `mapstructure:"evaluate-after-mutation"`
	MaxLiquidationsPerPass int  `mapstructure:"max-liquidations-per-pass"`
	// MaxAllowedLossPercent is the position loss above which the whole
	// account is force unstaked.
	MaxAllowedLossPercent uint64 `mapstructure:"max-allowed-loss-percent"`
}

func DefaultRiskConfig() *RiskConfig {
	return &RiskConfig{
		EvaluateAfterMutation:  true,
		MaxLiquidationsPerPass: defaultMaxLiquidationsPerPass,
		MaxAllowedLossPercent:  defaultMaxAllowedLossPercent,
	}
}

func (cfg *RiskConfig) Validate() error {
	if cfg.MaxLiquidationsPerPass <= 0 {
		return errors.New("max-liquidations-per-pass must be positive")
	}

	if cfg.MaxAllowedLossPercent == 0 || cfg.MaxAllowedLossPercent > 100 {
		return errors.New("max-allowed-loss-percent must be between 1 and 100")
	}

	return nil
}
