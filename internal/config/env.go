package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment overrides. They win over the config file, but not over flags.
const (
	EnvDBDriver        = "VERSETYPE_DB_DRIVER"
	EnvDatabaseURL     = "VERSETYPE_DATABASE_URL"
	EnvUser            = "VERSETYPE_USER"
	EnvAddress         = "VERSETYPE_ADDR"
	EnvShutdownTimeout = "VERSETYPE_SHUTDOWN_TIMEOUT"
)

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already set in the environment are kept.
func LoadDotEnv() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *FileConfig) error {
	if v := os.Getenv(EnvDBDriver); v != "" {
		cfg.Store.Driver = &v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Store.DSN = &v
	}
	if v := os.Getenv(EnvUser); v != "" {
		cfg.User.ID = &v
	}
	if v := os.Getenv(EnvAddress); v != "" {
		cfg.Server.Address = &v
	}
	if v := os.Getenv(EnvShutdownTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not a valid duration: %w", EnvShutdownTimeout, v, err)
		}
		cfg.Server.ShutdownTimeout = &Duration{Duration: d}
	}
	return nil
}
