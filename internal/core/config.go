package core

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-driven settings of the engine.
type Config struct {
	StorageDriver  string `env:"LOGISTICS_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath     string `env:"LOGISTICS_SQLITE_PATH" envDefault:"./logisticscore.db"`
	PostgresDSN    string `env:"LOGISTICS_POSTGRES_DSN"`
	ArchiveDriver  string `env:"LOGISTICS_ARCHIVE_DRIVER" envDefault:"fs"`
	ArchiveFSRoot  string `env:"LOGISTICS_ARCHIVE_FS_ROOT" envDefault:"./archive"`
	ActiveIncident string `env:"LOGISTICS_ACTIVE_INCIDENT"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
