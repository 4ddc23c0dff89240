package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DATABASE_URL", "USE_MEMORY", "SWAP_BACKEND", "CLICKHOUSE_DSN", "STORAGE_TIMEOUT",
	"WEBHOOK_AUTH_HEADER", "MAX_BODY_BYTES", "TRIGGER_POLICY", "AIRFLOW_DAG_RUNS_URL",
	"AIRFLOW_USERNAME", "AIRFLOW_PASSWORD", "TRIGGER_INTERVAL", "TRIGGER_TIMEOUT",
	"REDIS_ADDR", "REDIS_PASSWORD", "HELIUS_API_KEY", "HELIUS_API_URL", "NEW_WEBHOOK_URL",
	"HELIUS_WEBHOOK_ID", "HELIUS_TRANSACTION_TYPES", "HELIUS_WEBHOOK_TYPE", "HELIUS_TXN_STATUS",
	"HELIUS_AUTH_HEADER", "ADDRESS_LOOKBACK", "ADDRESS_LIMIT", "SYNC_ON_START", "SYNC_INTERVAL",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/helius")

	cfg, err := Load(nil, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, BackendPostgres, cfg.SwapBackend)
	assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
	assert.Equal(t, "raw", cfg.TriggerPolicy)
	assert.Equal(t, time.Minute, cfg.TriggerInterval)
	assert.Equal(t, 10*time.Second, cfg.TriggerTimeout)
	assert.Equal(t, "https://api.helius.xyz/v0", cfg.HeliusAPIURL)
	assert.Equal(t, []string{"SWAP"}, cfg.HeliusTransactionTypes)
	assert.Equal(t, "enhanced", cfg.HeliusWebhookType)
	assert.Equal(t, "all", cfg.HeliusTxnStatus)
	assert.Zero(t, cfg.AddressLookback)
	assert.Zero(t, cfg.AddressLimit)
	assert.False(t, cfg.SyncOnStart)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("USE_MEMORY", "true")
	t.Setenv("TRIGGER_POLICY", "Normalized")
	t.Setenv("TRIGGER_INTERVAL", "90")
	t.Setenv("ADDRESS_LOOKBACK", "720h")
	t.Setenv("ADDRESS_LIMIT", "500")
	t.Setenv("HELIUS_TRANSACTION_TYPES", "SWAP, TRANSFER ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(nil, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, BackendMemory, cfg.SwapBackend, "memory mode forces the memory swap backend")
	assert.Equal(t, "normalized", cfg.TriggerPolicy)
	assert.Equal(t, 90*time.Second, cfg.TriggerInterval)
	assert.Equal(t, 720*time.Hour, cfg.AddressLookback)
	assert.Equal(t, 500, cfg.AddressLimit)
	assert.Equal(t, []string{"SWAP", "TRANSFER"}, cfg.HeliusTransactionTypes)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# local settings\nUSE_MEMORY=true\nPORT=9999\nHELIUS_WEBHOOK_ID=wh-1\n"), 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.True(t, cfg.UseMemory)
	assert.Equal(t, 7000, cfg.Port, "process env wins over .env")
	assert.Equal(t, "wh-1", cfg.HeliusWebhookID)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := Load([]string{"--port", "6000", "--trigger-policy", "off", "--address-limit", "3"}, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, "off", cfg.TriggerPolicy)
	assert.Equal(t, 3, cfg.AddressLimit)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database url", nil, nil},
		{"bad port", map[string]string{"USE_MEMORY": "true", "PORT": "abc"}, nil},
		{"port out of range", map[string]string{"USE_MEMORY": "true", "PORT": "70000"}, nil},
		{"bad bool", map[string]string{"USE_MEMORY": "maybe"}, nil},
		{"bad duration", map[string]string{"USE_MEMORY": "true", "TRIGGER_INTERVAL": "soon"}, nil},
		{"unknown policy", map[string]string{"USE_MEMORY": "true", "TRIGGER_POLICY": "always"}, nil},
		{"unknown backend", map[string]string{"DATABASE_URL": "postgres://x", "SWAP_BACKEND": "mongo"}, nil},
		{"clickhouse without dsn", map[string]string{"DATABASE_URL": "postgres://x", "SWAP_BACKEND": "clickhouse"}, nil},
		{"bad airflow url", map[string]string{"USE_MEMORY": "true", "AIRFLOW_DAG_RUNS_URL": "not a url"}, nil},
		{"negative limit", map[string]string{"USE_MEMORY": "true", "ADDRESS_LIMIT": "-1"}, nil},
		{"unknown flag", map[string]string{"USE_MEMORY": "true"}, []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(tt.args, noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestValidateSync(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateSync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HELIUS_API_KEY")
	assert.Contains(t, err.Error(), "NEW_WEBHOOK_URL")

	cfg = &Config{HeliusAPIKey: "k", NewWebhookURL: "https://x/webhooks", DatabaseURL: "postgres://x"}
	assert.NoError(t, cfg.ValidateSync())
}
