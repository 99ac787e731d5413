package config

import (
	"errors"
	"time"
)

const (
	// minimum holding period before an unstake is accepted, guards against
	// single-block deposit/withdraw loops
	defaultMinStakeDuration      = 60 * time.Second
	defaultAllowedDeltaThreshold = 100
	defaultMaxUpdateRetries      = 5
	defaultUpdateRetryInterval   = 20 * time.Millisecond
	defaultDistributionWorkers   = 8
	defaultPrincipalPrefix       = "dnt"
)

type EngineConfig struct {
	MinStakeDuration time.Duration `mapstructure:"min-stake-duration"`
	// ResetLockupOnDeposit restarts the lockup clock on every deposit instead
	// of only on deposits into an empty account.
	ResetLockupOnDeposit         bool          `mapstructure:"reset-lockup-on-deposit"`
	DefaultAllowedDeltaThreshold uint64        `mapstructure:"default-allowed-delta-threshold"`
	MaxUpdateRetries             uint          `mapstructure:"max-update-retries"`
	UpdateRetryInterval          time.Duration `mapstructure:"update-retry-interval"`
	DistributionWorkers          int           `mapstructure:"distribution-workers"`
	PrincipalPrefix              string        `mapstructure:"principal-prefix"`
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MinStakeDuration:             defaultMinStakeDuration,
		DefaultAllowedDeltaThreshold: defaultAllowedDeltaThreshold,
		MaxUpdateRetries:             defaultMaxUpdateRetries,
		UpdateRetryInterval:          defaultUpdateRetryInterval,
		DistributionWorkers:          defaultDistributionWorkers,
		PrincipalPrefix:              defaultPrincipalPrefix,
	}
}

func (cfg *EngineConfig) Validate() error {
	if cfg.MinStakeDuration < 0 {
		return errors.New("min-stake-duration cannot be negative")
	}

	if cfg.DefaultAllowedDeltaThreshold == 0 {
		return errors.New("default-allowed-delta-threshold must be positive")
	}

	if cfg.MaxUpdateRetries == 0 {
		return errors.New("max-update-retries must be positive")
	}

	if cfg.UpdateRetryInterval <= 0 {
		return errors.New("update-retry-interval must be positive")
	}

	if cfg.DistributionWorkers <= 0 {
		return errors.New("distribution-workers must be positive")
	}

	// empty prefix disables principal format validation
	return nil
}
