// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Store    StoreConfig    `toml:"store"`
	User     UserConfig     `toml:"user"`
	Chart    ChartConfig    `toml:"chart"`
	Server   ServerConfig   `toml:"server"`
	Backfill BackfillConfig `toml:"backfill"`
}

// StoreConfig selects the database backend.
type StoreConfig struct {
	Driver *string `toml:"driver"`
	DSN    *string `toml:"dsn"`
}

// UserConfig holds the default user for CLI commands.
type UserConfig struct {
	ID *string `toml:"id"`
}

// ChartConfig maps chart defaults.
type ChartConfig struct {
	Range    *string `toml:"range"`
	Interval *string `toml:"interval"`
	Source   *string `toml:"source"`
	Height   *int    `toml:"height"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Address         *string   `toml:"address"`
	ShutdownTimeout *Duration `toml:"shutdown-timeout"`
}

// BackfillConfig maps backfill settings.
type BackfillConfig struct {
	Workers *int `toml:"workers"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
