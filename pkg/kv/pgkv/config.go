package pgkv

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the PostgreSQL connection parameters for the kv.Store
// backend. Field names and defaults mirror the env vars a Postgres-backed
// component in this codebase has always read them from, with a PGKV_
// prefix so a process running both a KV-backed auth store and some other
// Postgres-backed component doesn't collide on DB_* names.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoadConfigFromEnv loads Config from PGKV_* environment variables, with
// production-ready defaults for everything except the password.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("PGKV_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PGKV_PORT: %w", err)
	}

	cfg := Config{
		Host:     getEnvOrDefault("PGKV_HOST", "localhost"),
		Port:     port,
		User:     getEnvOrDefault("PGKV_USER", "waprojector"),
		Password: os.Getenv("PGKV_PASSWORD"),
		Database: getEnvOrDefault("PGKV_DATABASE", "waprojector"),
		SSLMode:  getEnvOrDefault("PGKV_SSLMODE", "disable"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that cfg is usable.
func (c Config) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("PGKV_PASSWORD is required")
	}
	return nil
}

// DSN returns the libpq-style connection string pgx expects.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
