package config

import (
	"errors"
	"time"
)

const (
	defaultAPIHost         = "0.0.0.0"
	defaultAPIPort         = 8080
	defaultAPIWriteTimeout = 30 * time.Second
	defaultAPIReadTimeout  = 15 * time.Second
	defaultAPIIdleTimeout  = 120 * time.Second
	defaultMaxPageSize     = 100
)

type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle-timeout"`
	MaxPageSize  int64         `mapstructure:"max-page-size"`
}

func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		Host:         defaultAPIHost,
		Port:         defaultAPIPort,
		WriteTimeout: defaultAPIWriteTimeout,
		ReadTimeout:  defaultAPIReadTimeout,
		IdleTimeout:  defaultAPIIdleTimeout,
		MaxPageSize:  defaultMaxPageSize,
	}
}

func (cfg *APIConfig) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return errors.New("api port must be between 0 and 65535")
	}

	if cfg.WriteTimeout <= 0 || cfg.ReadTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("api timeouts must be positive")
	}

	if cfg.MaxPageSize <= 0 {
		return errors.New("api max-page-size must be positive")
	}

	return nil
}
