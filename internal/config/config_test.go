package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.ScanCooldown)
	assert.Equal(t, "0.1", cfg.PointCashRate.String())
	assert.Equal(t, 5, cfg.ConflictRetries)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.MonthlyResetEnabled)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SCAN_COOLDOWN_SECONDS", "30")
	t.Setenv("POINT_CASH_RATE", "0.25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MONTHLY_RESET_ENABLED", "true")
	t.Setenv("JWT_TTL_MINUTES", "-4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ScanCooldown)
	assert.Equal(t, "0.25", cfg.PointCashRate.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.MonthlyResetEnabled)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
}

func TestLoadMemoryDriverSkipsDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database url": {"DATABASE_URL": "", "JWT_SECRET": "s"},
		"missing jwt secret":   {"DATABASE_URL": "postgres://x", "JWT_SECRET": ""},
		"bad driver":           {"DATABASE_URL": "postgres://x", "JWT_SECRET": "s", "STORAGE_DRIVER": "sqlite"},
		"bad rate":             {"DATABASE_URL": "postgres://x", "JWT_SECRET": "s", "POINT_CASH_RATE": "-1"},
		"bad reset flag":       {"DATABASE_URL": "postgres://x", "JWT_SECRET": "s", "MONTHLY_RESET_ENABLED": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
