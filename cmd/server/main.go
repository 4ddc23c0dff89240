// Package main runs the webhook ingestion service:
// - POST /webhooks stores, normalizes and upserts swap notifications
// - the downstream DAG is triggered at most once per window
// - optionally keeps the Helius webhook subscription in sync
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helius-swap-ingest/internal/api"
	"helius-swap-ingest/internal/app"
	"helius-swap-ingest/internal/config"
	"helius-swap-ingest/internal/feed"
	"helius-swap-ingest/internal/ingestion"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	policy, err := ingestion.ParseTriggerPolicy(cfg.TriggerPolicy)
	if err != nil {
		logger.Fatalf("Invalid trigger policy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	if cfg.SyncOnStart || cfg.SyncInterval > 0 {
		startSync(ctx, cfg, stores, logger)
	}

	limiter, closeTrigger := app.NewTrigger(cfg, logger)
	defer closeTrigger()

	broadcaster := feed.NewBroadcaster(feed.Options{Logger: logger})
	defer broadcaster.Close()

	opts := ingestion.Options{
		RawStore:       stores.Raw,
		SwapStore:      stores.Swaps,
		Policy:         policy,
		Publisher:      broadcaster,
		StorageTimeout: cfg.StorageTimeout,
		Logger:         logger,
	}
	if limiter != nil {
		opts.Trigger = limiter
	}
	pipeline := ingestion.NewPipeline(opts)

	server := api.NewServer(api.Options{
		Ingester:     pipeline,
		AuthHeader:   cfg.WebhookAuthHeader,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Feed:         broadcaster.Handler(),
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Closed once the HTTP server has drained
	drained := make(chan struct{})
	// Closed once everything has stopped
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		go func() {
			// Wait for second signal for immediate shutdown
			select {
			case sig := <-sigCh:
				logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
				os.Exit(1)
			case <-time.After(shutdownTimeout):
				logger.Println("Graceful shutdown timed out after 30s, forcing exit")
				os.Exit(1)
			case <-done:
			}
		}()

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		close(drained)
	}()

	logger.Printf("Listening on %s (trigger policy: %s, swap backend: %s)", httpServer.Addr, policy, cfg.SwapBackend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	<-drained
	pipeline.Wait()
	close(done)
	logger.Println("Shutdown complete")
}

// startSync runs one subscription sync before serving and, with a sync
// interval, keeps syncing in the background. Failures are logged only.
func startSync(ctx context.Context, cfg *config.Config, stores *app.Stores, logger *log.Logger) {
	if err := cfg.ValidateSync(); err != nil {
		logger.Printf("Webhook sync disabled: %v", err)
		return
	}

	sync := app.NewSynchronizer(cfg, stores.Addresses, logger)

	if cfg.SyncInterval <= 0 {
		result, err := sync.Sync(ctx)
		if err != nil {
			logger.Printf("Webhook sync failed: %v", err)
			return
		}
		logger.Printf("Webhook %s %s with %d addresses", result.WebhookID, result.Action, result.Addresses)
		return
	}

	go func() {
		if err := sync.Run(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Webhook sync stopped: %v", err)
		}
	}()
}
