package config

import (
	"fmt"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"

	defaultDbName = "dnt-staking-engine"
)

type DbConfig struct {
	// Backend selects the store implementation: mongo or memory.
	Backend  string `mapstructure:"backend"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DbName   string `mapstructure:"db-name"`
	Address  string `mapstructure:"address"`
	// DirectConnection is required when talking to a single node replica set.
	DirectConnection bool `mapstructure:"direct-connection"`
}

func DefaultDbConfig() *DbConfig {
	return &DbConfig{
		Backend: BackendMongo,
		DbName:  defaultDbName,
	}
}

func (cfg *DbConfig) Validate() error {
	switch cfg.Backend {
	case BackendMemory:
		return nil
	case BackendMongo:
	default:
		return fmt.Errorf("unknown db backend %q", cfg.Backend)
	}

	if cfg.DbName == "" {
		return fmt.Errorf("db name cannot be empty")
	}

	if cfg.Address == "" {
		return fmt.Errorf("db address cannot be empty")
	}

	return nil
}
