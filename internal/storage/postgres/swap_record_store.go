package postgres

import (
	"context"
	"fmt"
	"time"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

// SwapRecordStore implements storage.SwapRecordStore using PostgreSQL.
type SwapRecordStore struct {
	pool *Pool
}

// NewSwapRecordStore creates a new SwapRecordStore.
func NewSwapRecordStore(pool *Pool) *SwapRecordStore {
	return &SwapRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)

// Upsert inserts the record or replaces every non-key column on signature conflict.
func (s *SwapRecordStore) Upsert(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO helius_txns_clean (
			raw_id, user_address, swapfromtoken, swapfromamount, swaptotoken, swaptoamount, signature, source, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signature) DO UPDATE SET
			raw_id = EXCLUDED.raw_id,
			user_address = EXCLUDED.user_address,
			swapfromtoken = EXCLUDED.swapfromtoken,
			swapfromamount = EXCLUDED.swapfromamount,
			swaptotoken = EXCLUDED.swaptotoken,
			swaptoamount = EXCLUDED.swaptoamount,
			source = EXCLUDED.source,
			timestamp = EXCLUDED.timestamp
	`

	_, err := s.pool.Exec(ctx, query,
		r.RawID,
		nullString(r.UserAddress),
		nullString(r.SwapFromToken),
		r.SwapFromAmount,
		nullString(r.SwapToToken),
		r.SwapToAmount,
		r.Signature,
		nullString(r.Source),
		r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert swap record: %w", err)
	}
	return nil
}

// GetBySignature retrieves a record by signature.
func (s *SwapRecordStore) GetBySignature(ctx context.Context, signature string) (*domain.SwapRecord, error) {
	query := `
		SELECT raw_id, user_address, swapfromtoken, swapfromamount, swaptotoken, swaptoamount, signature, source, timestamp
		FROM helius_txns_clean
		WHERE signature = $1
	`

	var (
		r                                       domain.SwapRecord
		rawID                                   *int64
		userAddress, fromToken, toToken, source *string
		ts                                      *time.Time
	)

	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&rawID,
		&userAddress,
		&fromToken,
		&r.SwapFromAmount,
		&toToken,
		&r.SwapToAmount,
		&r.Signature,
		&source,
		&ts,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap record by signature: %w", err)
	}

	if rawID != nil {
		r.RawID = *rawID
	}
	r.UserAddress = derefString(userAddress)
	r.SwapFromToken = derefString(fromToken)
	r.SwapToToken = derefString(toToken)
	r.Source = derefString(source)
	if ts != nil {
		utc := ts.UTC()
		r.Timestamp = &utc
	}

	return &r, nil
}
