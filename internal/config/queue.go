package config

import (
	"errors"
	"time"
)

const (
	defaultLiquidationQueue      = "liquidation.records"
	defaultGovernanceQueue       = "governance.updates"
	defaultQueuePublishTimeout   = 5 * time.Second
	defaultQueueReconnectBackoff = 5 * time.Second
)

type QueueConfig struct {
	// Enabled turns the rabbitmq integration on. Without it liquidation
	// records are only persisted and governance updates cannot be applied.
	Enabled          bool          `mapstructure:"enabled"`
	URL              string        `mapstructure:"url"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	LiquidationQueue string        `mapstructure:"liquidation-queue"`
	GovernanceQueue  string        `mapstructure:"governance-queue"`
	PublishTimeout   time.Duration `mapstructure:"publish-timeout"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect-backoff"`
}

func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		LiquidationQueue: defaultLiquidationQueue,
		GovernanceQueue:  defaultGovernanceQueue,
		PublishTimeout:   defaultQueuePublishTimeout,
		ReconnectBackoff: defaultQueueReconnectBackoff,
	}
}

func (cfg *QueueConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.URL == "" {
		return errors.New("queue url must be set")
	}

	if cfg.LiquidationQueue == "" || cfg.GovernanceQueue == "" {
		return errors.New("queue names must be set")
	}

	if cfg.PublishTimeout <= 0 {
		return errors.New("queue publish-timeout must be positive")
	}

	if cfg.ReconnectBackoff <= 0 {
		return errors.New("queue reconnect-backoff must be positive")
	}

	return nil
}
