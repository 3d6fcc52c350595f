package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.App.StoreDriver)
	assert.Equal(t, uint64(5), cfg.Transfer.RetryMax)
	assert.Equal(t, 10*time.Millisecond, cfg.Transfer.RetryBase)
	assert.Equal(t, uint64(3), cfg.Transfer.CompensationRetries)
	assert.Equal(t, 50, cfg.Transfer.LotsPageSize)
	assert.Equal(t, time.Minute, cfg.Worker.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.HTTP.IdempotencyTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, ":9091", cfg.Worker.MetricsAddr)
	assert.Empty(t, cfg.App.SeedFile)
}

func TestFromViper_Overrides(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"STORE_DRIVER":          "MEMORY",
		"TRANSFER_RETRY_MAX":    "8",
		"WORKER_SWEEP_INTERVAL": "30s",
		"WORKER_AUDIT_REPAIR":   "true",
		"REDIS_ADDRESS":         "localhost:6379",
	}))
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.App.StoreDriver)
	assert.Equal(t, uint64(8), cfg.Transfer.RetryMax)
	assert.Equal(t, 30*time.Second, cfg.Worker.SweepInterval)
	assert.True(t, cfg.Worker.AuditRepair)
	assert.True(t, cfg.Redis.Enabled())
}

func TestFromViper_Invalido(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{"STORE_DRIVER": "mongo"}))
	assert.Error(t, err)

	_, err = FromViper(newViper(map[string]any{"LOTS_PAGE_SIZE": 0}))
	assert.Error(t, err)
}

func TestDBConfig_ConnectionString(t *testing.T) {
	db := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:word", DBName: "traslados", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aword@db:5432/traslados?sslmode=disable", db.ConnectionString())

	db.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", db.ConnectionString())
}
