package config

import (
	"fmt"
	"time"
)

const (
	defaultFeedTimeout       = 10 * time.Second
	defaultFeedMaxRetryTimes = 3
	defaultFeedRetryInterval = 500 * time.Millisecond
)

// FeedClientConfig configures one of the http feeds the engine consumes.
type FeedClientConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
}

func (cfg *FeedClientConfig) Validate(name string) error {
	if cfg.URL == "" {
		return fmt.Errorf("%s url must be set", name)
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("%s timeout must be positive", name)
	}

	if cfg.MaxRetryTimes == 0 {
		return fmt.Errorf("%s max-retry-times must be positive", name)
	}

	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("%s retry-interval must be positive", name)
	}

	return nil
}

type FeedsConfig struct {
	// Hedge serves both the profit and the exposure feed.
	Hedge   FeedClientConfig `mapstructure:"hedge"`
	Pricing FeedClientConfig `mapstructure:"pricing"`
}

func defaultFeedClientConfig() FeedClientConfig {
	return FeedClientConfig{
		Timeout:       defaultFeedTimeout,
		MaxRetryTimes: defaultFeedMaxRetryTimes,
		RetryInterval: defaultFeedRetryInterval,
	}
}

func DefaultFeedsConfig() *FeedsConfig {
	return &FeedsConfig{
		Hedge:   defaultFeedClientConfig(),
		Pricing: defaultFeedClientConfig(),
	}
}

func (cfg *FeedsConfig) Validate() error {
	if err := cfg.Hedge.Validate("hedge feed"); err != nil {
		return err
	}

	return cfg.Pricing.Validate("pricing feed")
}
