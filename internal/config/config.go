// Package config loads tablebuilder settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings. Command-line flags override these
// values when set.
type Config struct {
	Database      string `env:"TABLEBUILDER_DB"              envDefault:"tablebuilder.db"`
	MaxTableCells int    `env:"TABLEBUILDER_MAX_TABLE_CELLS" envDefault:"25000"`
	MaxOpenConns  int    `env:"TABLEBUILDER_MAX_OPEN_CONNS"  envDefault:"4"`
	Addr          string `env:"TABLEBUILDER_ADDR"            envDefault:":8080"`
	LogLevel      string `env:"TABLEBUILDER_LOG_LEVEL"       envDefault:"info"`
	Retries       int    `env:"TABLEBUILDER_RETRIES"         envDefault:"3"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxTableCells < 1 {
		return fmt.Errorf("max table cells must be positive, got %d", c.MaxTableCells)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max open connections must be positive, got %d", c.MaxOpenConns)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
