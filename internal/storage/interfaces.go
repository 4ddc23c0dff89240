package storage

import (
	"context"
	"encoding/json"
	"time"

	"helius-swap-ingest/internal/domain"
)

// RawEventStore provides access to helius_hook storage.
type RawEventStore interface {
	// Insert appends one payload and returns its generated id.
	// Either the row is visible to subsequent reads or nothing is written.
	Insert(ctx context.Context, payload json.RawMessage) (int64, error)

	// MarkProcessed sets processed = true. Marking twice is a no-op success.
	// Returns ErrNotFound if id does not exist.
	MarkProcessed(ctx context.Context, id int64) error

	// GetByID retrieves a raw event. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.RawEvent, error)

	// ListUnprocessed retrieves up to limit unprocessed events with id > afterID, ordered by id ASC.
	ListUnprocessed(ctx context.Context, afterID int64, limit int) ([]*domain.RawEvent, error)
}

// SwapRecordStore provides access to helius_txns_clean storage.
type SwapRecordStore interface {
	// Upsert inserts the record or replaces every non-key column of the
	// existing row with the same signature, in a single atomic write.
	// Returns ErrInvalidInput if signature is empty.
	Upsert(ctx context.Context, r *domain.SwapRecord) error

	// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.SwapRecord, error)
}

// AddressSource provides the account addresses a webhook subscription should watch.
type AddressSource interface {
	// ListAddresses returns distinct, non-empty addresses.
	// since restricts to rows updated at or after it (zero means no restriction);
	// limit caps the result (0 means no cap).
	ListAddresses(ctx context.Context, since time.Time, limit int) ([]string, error)
}
