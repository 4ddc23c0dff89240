package ingestion

import (
	"context"
	"fmt"
	"log"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

// Reprocessor replays one stored raw event. Pipeline implements it.
type Reprocessor interface {
	Reprocess(ctx context.Context, ev *domain.RawEvent) (Result, error)
}

// ReprocessOptions controls ReprocessAll.
type ReprocessOptions struct {
	AfterID   int64 // Only events with a greater id
	BatchSize int   // Default: 500
	Max       int   // Stop after this many events (0 = all)
	Logger    *log.Logger
}

// ReprocessStats counts terminal states of a ReprocessAll run.
type ReprocessStats struct {
	Total         int
	Processed     int
	NotApplicable int
	Superseded    int // older than the stored row for the same signature
	Failed        int // upsert or mark-processed failures
	LastID        int64
}

// ReprocessAll walks unprocessed raw events in id order and replays each one.
// Events that fail stay unprocessed; paging is by id, so each event is
// visited at most once per run.
func ReprocessAll(ctx context.Context, raw storage.RawEventStore, r Reprocessor, opts ReprocessOptions) (ReprocessStats, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	stats := ReprocessStats{LastID: opts.AfterID}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		limit := batchSize
		if opts.Max > 0 && opts.Max-stats.Total < limit {
			limit = opts.Max - stats.Total
		}
		if limit <= 0 {
			return stats, nil
		}

		events, err := raw.ListUnprocessed(ctx, stats.LastID, limit)
		if err != nil {
			return stats, fmt.Errorf("list unprocessed after %d: %w", stats.LastID, err)
		}
		if len(events) == 0 {
			return stats, nil
		}

		for _, ev := range events {
			res, err := r.Reprocess(ctx, ev)
			if err != nil {
				return stats, fmt.Errorf("reprocess raw event %d: %w", ev.ID, err)
			}

			stats.Total++
			stats.LastID = ev.ID
			switch res.State {
			case StateProcessed:
				stats.Processed++
			case StateNotApplicable:
				stats.NotApplicable++
			case StateSuperseded:
				stats.Superseded++
			default:
				stats.Failed++
			}
		}

		logger.Printf("Reprocessed through raw_id %d (%d events)", stats.LastID, stats.Total)
	}
}
