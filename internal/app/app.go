// Package app wires configuration into stores, the trigger limiter and the
// subscription synchronizer for the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"helius-swap-ingest/internal/config"
	"helius-swap-ingest/internal/helius"
	"helius-swap-ingest/internal/ingestion"
	"helius-swap-ingest/internal/storage"
	chstore "helius-swap-ingest/internal/storage/clickhouse"
	"helius-swap-ingest/internal/storage/memory"
	"helius-swap-ingest/internal/storage/migrations"
	pgstore "helius-swap-ingest/internal/storage/postgres"
	"helius-swap-ingest/internal/trigger"
)

// Stores holds the storage implementations selected by configuration.
type Stores struct {
	Raw       storage.RawEventStore
	Swaps     storage.SwapRecordStore
	Addresses storage.AddressSource

	closers []func()
}

// Close releases every connection held by the stores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStores connects to the configured backends and applies migrations.
func OpenStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Stores, error) {
	if cfg.UseMemory {
		logger.Println("Using in-memory storage")
		return &Stores{
			Raw:       memory.NewRawEventStore(),
			Swaps:     memory.NewSwapRecordStore(),
			Addresses: memory.NewAddressStore(),
		}, nil
	}

	stores := &Stores{}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	stores.closers = append(stores.closers, pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		stores.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores.Raw = pgstore.NewRawEventStore(pool)
	stores.Addresses = pgstore.NewAddressStore(pool)

	switch cfg.SwapBackend {
	case config.BackendClickhouse:
		if err := chstore.EnsureDatabase(ctx, cfg.ClickhouseDSN); err != nil {
			stores.Close()
			return nil, err
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.closers = append(stores.closers, func() { _ = conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			stores.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.Swaps = chstore.NewSwapRecordStore(conn)
		logger.Println("Swap records stored in ClickHouse")
	case config.BackendMemory:
		stores.Swaps = memory.NewSwapRecordStore()
		logger.Println("Swap records stored in memory")
	default:
		stores.Swaps = pgstore.NewSwapRecordStore(pool)
	}

	return stores, nil
}

// NewTrigger builds the downstream trigger limiter. It returns nil when no
// DAG endpoint is configured or the policy is off.
func NewTrigger(cfg *config.Config, logger *log.Logger) (*trigger.Limiter, func()) {
	noop := func() {}
	if cfg.AirflowDagRunsURL == "" || cfg.TriggerPolicy == string(ingestion.TriggerOff) {
		logger.Println("DAG triggering disabled")
		return nil, noop
	}

	opts := []trigger.AirflowOption{trigger.WithTimeout(cfg.TriggerTimeout)}
	if cfg.AirflowUsername != "" {
		opts = append(opts, trigger.WithBasicAuth(cfg.AirflowUsername, cfg.AirflowPassword))
	}
	caller := trigger.NewAirflowClient(cfg.AirflowDagRunsURL, opts...)

	var gate trigger.Gate = trigger.NewLocalGate(cfg.TriggerInterval)
	cleanup := noop
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		redisGate := trigger.NewRedisGate(trigger.RedisGateOptions{
			Client:   client,
			Interval: cfg.TriggerInterval,
			Logger:   logger,
		})
		logger.Printf("Trigger window shared through %s", redisGate)
		gate = redisGate
		cleanup = func() { _ = client.Close() }
	}

	limiter := trigger.NewLimiter(trigger.LimiterOptions{
		Caller:  caller,
		Gate:    gate,
		Timeout: cfg.TriggerTimeout,
		Logger:  logger,
	})
	return limiter, cleanup
}

// NewSynchronizer builds the webhook subscription synchronizer.
func NewSynchronizer(cfg *config.Config, addresses storage.AddressSource, logger *log.Logger) *helius.Synchronizer {
	client := helius.NewClient(cfg.HeliusAPIKey, helius.WithBaseURL(cfg.HeliusAPIURL))

	return helius.NewSynchronizer(helius.SyncOptions{
		API:              client,
		Addresses:        addresses,
		WebhookURL:       cfg.NewWebhookURL,
		WebhookID:        cfg.HeliusWebhookID,
		TransactionTypes: cfg.HeliusTransactionTypes,
		WebhookType:      cfg.HeliusWebhookType,
		TxnStatus:        cfg.HeliusTxnStatus,
		AuthHeader:       cfg.HeliusAuthHeader,
		Lookback:         cfg.AddressLookback,
		Limit:            cfg.AddressLimit,
		Logger:           logger,
	})
}
