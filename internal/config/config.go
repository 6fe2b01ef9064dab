// Package config loads process-wide defaults from the environment. A .env
// file in the working directory is honoured when present; real environment
// variables win.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the tunables that apply regardless of how the binary is
// invoked. Per-command flags override these.
type Config struct {
	// Location and StorageClass apply when a bucket has to be created.
	Location     string `env:"GCS_SHARE_DEFAULT_LOCATION" envDefault:"US-EAST1"`
	StorageClass string `env:"GCS_SHARE_DEFAULT_STORAGE_CLASS" envDefault:"STANDARD"`

	LogLevel string `env:"GCS_SHARE_LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	return cfg, nil
}
