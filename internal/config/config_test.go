package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STARPETS_API_ADDR", "")
	t.Setenv("STARPETS_STORE", "memory")
	t.Setenv("STARPETS_RATE_LIMIT", "")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	require.Equal(t, 5.0, cfg.RateLimit)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadAPIFromEnvPort(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STARPETS_STORE", "memory")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
}

func TestPostgresStoreRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STARPETS_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STARPETS_DB_MAX_CONNS", "")

	_, err := LoadStoreFromEnv()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/starpets")
	cfg, err := LoadStoreFromEnv()
	require.NoError(t, err)
	require.Equal(t, StoreDriverPostgres, cfg.Driver)
	require.Equal(t, int32(20), cfg.MaxConns)
}

func TestUnknownStoreDriver(t *testing.T) {
	t.Setenv("STARPETS_STORE", "sqlite")

	_, err := LoadStoreFromEnv()
	require.ErrorContains(t, err, "STARPETS_STORE")
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("STARPETS_STORE", "memory")
	t.Setenv("STARPETS_REGEN_EVERY", "")
	t.Setenv("STARPETS_SWEEP_EVERY", "30s")
	t.Setenv("STARPETS_WORKER_RUN_ONCE", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	require.Equal(t, time.Hour, cfg.RegenEvery)
	require.Equal(t, 30*time.Second, cfg.SweepEvery)
	require.True(t, cfg.RunOnce)
	require.Equal(t, 3, cfg.RedisDB)
}

func TestWorkerRejectsSubHourlyRegen(t *testing.T) {
	t.Setenv("STARPETS_STORE", "memory")
	t.Setenv("STARPETS_REGEN_EVERY", "10m")

	_, err := LoadWorkerFromEnv()
	require.Error(t, err)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_DURATION", "soon")
	t.Setenv("X_INT", "many")
	t.Setenv("X_BOOL", "maybe")

	require.Equal(t, time.Minute, envDurationDefault("X_DURATION", time.Minute))
	require.Equal(t, 7, envIntDefault("X_INT", 7))
	require.True(t, envBoolDefault("X_BOOL", true))
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("STARPETS_API_URL", "http://pets.internal:9000")

	cfg := LoadCLIFromEnv()
	require.Equal(t, "http://pets.internal:9000", cfg.APIBaseURL)
	require.False(t, cfg.Log.JSON)
}
