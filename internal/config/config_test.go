package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tombstone")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.Development())
	assert.False(t, cfg.SoftDelete.Enabled)
	assert.Empty(t, cfg.SoftDelete.ExcludedTables)
	assert.Equal(t, int32(25), cfg.DB.MaxConns)
	assert.Equal(t, time.Hour, cfg.DB.MaxConnLifetime)
	assert.True(t, cfg.ListenSchemaChanges)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("TOMBSTONE_ENABLED", "true")
	t.Setenv("TOMBSTONE_EXCLUDED_TABLES", " schema_migrations, ,audit_log")
	t.Setenv("DB_MAX_CONNS", "oops")
	t.Setenv("APP_ENV", "production")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.DB.URL)
	assert.True(t, cfg.SoftDelete.Enabled)
	assert.Equal(t, []string{"schema_migrations", "audit_log"}, cfg.SoftDelete.ExcludedTables)
	assert.Equal(t, int32(25), cfg.DB.MaxConns)
	assert.False(t, cfg.Development())
	assert.False(t, cfg.ListenSchemaChanges)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "mysql")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_SoftDeleteOptIn(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")

	for value, want := range map[string]bool{"": false, "false": false, "yes": false, "true": true, "1": true} {
		t.Setenv("TOMBSTONE_ENABLED", value)
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, want, cfg.SoftDelete.Enabled, "TOMBSTONE_ENABLED=%q", value)
	}
}
