// Package config loads runtime configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tombstone/internal/softdelete"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB DBConfig

	SoftDelete softdelete.Config

	// AutoMigrate creates the inventory tables at startup.
	AutoMigrate bool
	// ListenSchemaChanges subscribes to schema change notifications (postgres only).
	ListenSchemaChanges bool
}

// DBConfig selects and tunes the storage backend.
type DBConfig struct {
	Driver          string
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Development reports whether the app runs in development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Driver:          getEnv("DB_DRIVER", DriverPostgres),
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		// Soft delete is opt-in: without TOMBSTONE_ENABLED every type deletes physically.
		SoftDelete: softdelete.Config{
			Enabled:        getEnvBool("TOMBSTONE_ENABLED", false),
			ExcludedTables: getEnvList("TOMBSTONE_EXCLUDED_TABLES"),
		},
		AutoMigrate:         getEnvBool("AUTO_MIGRATE", false),
		ListenSchemaChanges: getEnvBool("LISTEN_SCHEMA_CHANGES", true),
	}

	switch cfg.DB.Driver {
	case DriverPostgres:
		if cfg.DB.URL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for driver %s", cfg.DB.Driver)
		}
	case DriverSQLite:
		if cfg.DB.URL == "" {
			cfg.DB.URL = ":memory:"
		}
		cfg.ListenSchemaChanges = false
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
