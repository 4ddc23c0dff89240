// Package main points the Helius webhook subscription at this service and
// refreshes its watched addresses from trader_filtered.
//
// Usage:
//
//	syncwebhook                      # one pass
//	syncwebhook --sync-interval 1h   # keep syncing until interrupted
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"helius-swap-ingest/internal/app"
	"helius-swap-ingest/internal/config"
)

func main() {
	logger := log.New(os.Stdout, "[syncwebhook] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateSync(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	sync := app.NewSynchronizer(cfg, stores.Addresses, logger)

	if err := sync.Run(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("Webhook sync failed: %v", err)
		stores.Close()
		os.Exit(1)
	}

	logger.Println("Done")
}
