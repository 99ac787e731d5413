package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Db      DbConfig      `mapstructure:"db"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Feeds   FeedsConfig   `mapstructure:"feeds"`
	Queue   QueueConfig   `mapstructure:"queue"`
	API     APIConfig     `mapstructure:"api"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Db.Validate(); err != nil {
		return err
	}

	if err := cfg.Engine.Validate(); err != nil {
		return err
	}

	if err := cfg.Poller.Validate(); err != nil {
		return err
	}

	if err := cfg.Risk.Validate(); err != nil {
		return err
	}

	if err := cfg.Feeds.Validate(); err != nil {
		return err
	}

	if err := cfg.Queue.Validate(); err != nil {
		return err
	}

	if err := cfg.API.Validate(); err != nil {
		return err
	}

	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}

	return nil
}

// New returns a fully parsed Config object from a given file directory
func New(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(cfgFile)

	// env variables override file values, e.g. DB_ADDRESS overrides db.address
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config with every optional value populated.
func Default() *Config {
	return &Config{
		Db:      *DefaultDbConfig(),
		Engine:  *DefaultEngineConfig(),
		Poller:  *DefaultPollerConfig(),
		Risk:    *DefaultRiskConfig(),
		Feeds:   *DefaultFeedsConfig(),
		Queue:   *DefaultQueueConfig(),
		API:     *DefaultAPIConfig(),
		Metrics: *DefaultMetricsConfig(),
	}
}
