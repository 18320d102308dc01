// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	// Postgres connection for the staging store. Nil means the
	// in-memory store is used (dry runs, tests).
	Postgres *PostgresConfig

	// Pipeline settings
	ChunkSize int
	DataDir   string // directory holding the delimited source extracts

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values
		ChunkSize: getEnvAsInt("CHUNK_SIZE", 1000),
		DataDir:   getEnv("DATA_DIR", "./data"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Postgres is optional; without it the pipeline runs on the
	// in-memory store.
	if os.Getenv("POSTGRES_HOST") != "" {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	if c.DataDir == "" {
		return errors.New("data directory is required")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
