// Package main replays unprocessed raw webhook payloads through
// normalization, upsert and the processed flag. Raw rows are never
// re-inserted and the downstream DAG is not triggered.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"helius-swap-ingest/internal/app"
	"helius-swap-ingest/internal/config"
	"helius-swap-ingest/internal/ingestion"
)

func main() {
	logger := log.New(os.Stdout, "[reprocess] ", log.LstdFlags|log.Lshortfile)

	fs := flag.NewFlagSet("reprocess", flag.ExitOnError)
	batchSize := fs.Int("batch-size", 500, "Raw events fetched per batch")
	afterID := fs.Int64("after-id", 0, "Only replay raw events with a greater id")
	maxEvents := fs.Int("max", 0, "Stop after this many events (0 = all)")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(nil)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if cfg.UseMemory {
		logger.Fatal("Nothing to reprocess with in-memory storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	pipeline := ingestion.NewPipeline(ingestion.Options{
		RawStore:       stores.Raw,
		SwapStore:      stores.Swaps,
		Policy:         ingestion.TriggerOff,
		StorageTimeout: cfg.StorageTimeout,
		Logger:         logger,
	})

	stats, err := ingestion.ReprocessAll(ctx, stores.Raw, pipeline, ingestion.ReprocessOptions{
		AfterID:   *afterID,
		BatchSize: *batchSize,
		Max:       *maxEvents,
		Logger:    logger,
	})
	logger.Printf("Reprocessed %d events: %d processed, %d not applicable, %d superseded, %d failed",
		stats.Total, stats.Processed, stats.NotApplicable, stats.Superseded, stats.Failed)
	if err != nil {
		logger.Printf("Reprocess stopped: %v", err)
		stores.Close()
		os.Exit(1)
	}
}
