// Package config loads service configuration from a .env file, the process
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Swap record backends.
const (
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendMemory     = "memory"
)

// Config holds every setting of the ingestion service and its tools.
type Config struct {
	Port int `validate:"min=1,max=65535"`

	// Storage
	DatabaseURL    string `validate:"required_if=UseMemory false"`
	UseMemory      bool
	SwapBackend    string        `validate:"oneof=postgres clickhouse memory"`
	ClickhouseDSN  string        `validate:"required_if=SwapBackend clickhouse"`
	StorageTimeout time.Duration `validate:"gt=0"`

	// Inbound webhook
	WebhookAuthHeader string
	MaxBodyBytes      int64 `validate:"gt=0"`

	// Downstream trigger
	TriggerPolicy     string `validate:"oneof=raw normalized off"`
	AirflowDagRunsURL string `validate:"omitempty,url"`
	AirflowUsername   string
	AirflowPassword   string
	TriggerInterval   time.Duration `validate:"gt=0"`
	TriggerTimeout    time.Duration `validate:"gt=0"`
	RedisAddr         string        `validate:"omitempty,hostname_port"`
	RedisPassword     string

	// Webhook subscription
	HeliusAPIKey           string
	HeliusAPIURL           string `validate:"required,url"`
	NewWebhookURL          string `validate:"omitempty,url"`
	HeliusWebhookID        string
	HeliusTransactionTypes []string `validate:"min=1,dive,required"`
	HeliusWebhookType      string   `validate:"required"`
	HeliusTxnStatus        string   `validate:"required"`
	HeliusAuthHeader       string
	AddressLookback        time.Duration `validate:"gte=0"`
	AddressLimit           int           `validate:"gte=0"`
	SyncOnStart            bool
	SyncInterval           time.Duration `validate:"gte=0"`
}

// Load reads configuration. envFiles default to ".env"; missing files are
// ignored. Variables already present in the environment are not overridden.
// args are parsed as flags and win over both.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var (
		e   envReader
		cfg Config
	)

	cfg.Port = e.getInt("PORT", 5000)
	cfg.DatabaseURL = e.getString("DATABASE_URL", "")
	cfg.UseMemory = e.getBool("USE_MEMORY", false)
	cfg.SwapBackend = e.getString("SWAP_BACKEND", BackendPostgres)
	cfg.ClickhouseDSN = e.getString("CLICKHOUSE_DSN", "")
	cfg.StorageTimeout = e.getDuration("STORAGE_TIMEOUT", 5*time.Second)

	cfg.WebhookAuthHeader = e.getString("WEBHOOK_AUTH_HEADER", "")
	cfg.MaxBodyBytes = int64(e.getInt("MAX_BODY_BYTES", 10<<20))

	cfg.TriggerPolicy = strings.ToLower(e.getString("TRIGGER_POLICY", "raw"))
	cfg.AirflowDagRunsURL = e.getString("AIRFLOW_DAG_RUNS_URL", "")
	cfg.AirflowUsername = e.getString("AIRFLOW_USERNAME", "")
	cfg.AirflowPassword = e.getString("AIRFLOW_PASSWORD", "")
	cfg.TriggerInterval = e.getDuration("TRIGGER_INTERVAL", time.Minute)
	cfg.TriggerTimeout = e.getDuration("TRIGGER_TIMEOUT", 10*time.Second)
	cfg.RedisAddr = e.getString("REDIS_ADDR", "")
	cfg.RedisPassword = e.getString("REDIS_PASSWORD", "")

	cfg.HeliusAPIKey = e.getString("HELIUS_API_KEY", "")
	cfg.HeliusAPIURL = e.getString("HELIUS_API_URL", "https://api.helius.xyz/v0")
	cfg.NewWebhookURL = e.getString("NEW_WEBHOOK_URL", "")
	cfg.HeliusWebhookID = e.getString("HELIUS_WEBHOOK_ID", "")
	cfg.HeliusTransactionTypes = splitList(e.getString("HELIUS_TRANSACTION_TYPES", "SWAP"))
	cfg.HeliusWebhookType = e.getString("HELIUS_WEBHOOK_TYPE", "enhanced")
	cfg.HeliusTxnStatus = e.getString("HELIUS_TXN_STATUS", "all")
	cfg.HeliusAuthHeader = e.getString("HELIUS_AUTH_HEADER", "")
	cfg.AddressLookback = e.getDuration("ADDRESS_LOOKBACK", 0)
	cfg.AddressLimit = e.getInt("ADDRESS_LIMIT", 0)
	cfg.SyncOnStart = e.getBool("SYNC_ON_START", false)
	cfg.SyncInterval = e.getDuration("SYNC_INTERVAL", 0)

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	flags := flag.NewFlagSet("helius-swap-ingest", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	flags.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	flags.StringVar(&cfg.SwapBackend, "swap-backend", cfg.SwapBackend, "Swap record backend (postgres, clickhouse, memory)")
	flags.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	flags.StringVar(&cfg.TriggerPolicy, "trigger-policy", cfg.TriggerPolicy, "When to trigger the DAG (raw, normalized, off)")
	flags.BoolVar(&cfg.SyncOnStart, "sync-on-start", cfg.SyncOnStart, "Sync the webhook subscription before serving")
	flags.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "Webhook sync interval (0 = once)")
	flags.DurationVar(&cfg.AddressLookback, "address-lookback", cfg.AddressLookback, "Only watch addresses updated within this window (0 = all)")
	flags.IntVar(&cfg.AddressLimit, "address-limit", cfg.AddressLimit, "Maximum number of watched addresses (0 = no cap)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if cfg.UseMemory {
		cfg.SwapBackend = BackendMemory
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateSync checks the settings the subscription synchronizer needs.
func (c *Config) ValidateSync() error {
	var errs []error
	if c.HeliusAPIKey == "" {
		errs = append(errs, errors.New("HELIUS_API_KEY is not set"))
	}
	if c.NewWebhookURL == "" {
		errs = append(errs, errors.New("NEW_WEBHOOK_URL is not set"))
	}
	if c.UseMemory {
		errs = append(errs, errors.New("webhook sync reads addresses from PostgreSQL; USE_MEMORY must be false"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// envReader reads typed environment variables and collects parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) getBool(key string, def bool) bool {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// getDuration accepts Go duration strings or a bare number of seconds.
func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
