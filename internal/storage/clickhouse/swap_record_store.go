package clickhouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

// SwapRecordStore implements storage.SwapRecordStore using ClickHouse.
// Rows are versioned; ReplacingMergeTree collapses them to the newest version
// per signature and reads use FINAL, so every upsert is a single insert.
type SwapRecordStore struct {
	conn *Conn

	mu          sync.Mutex
	lastVersion uint64
}

// NewSwapRecordStore creates a new SwapRecordStore.
func NewSwapRecordStore(conn *Conn) *SwapRecordStore {
	return &SwapRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)

// Upsert inserts a new version of the record.
func (s *SwapRecordStore) Upsert(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO helius_txns_clean (
			signature, raw_id, user_address, swapfromtoken, swapfromamount,
			swaptotoken, swaptoamount, source, timestamp, version
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.Signature,
		r.RawID,
		nullString(r.UserAddress),
		nullString(r.SwapFromToken),
		nullDecimal(r.SwapFromAmount),
		nullString(r.SwapToToken),
		nullDecimal(r.SwapToAmount),
		nullString(r.Source),
		r.Timestamp,
		s.nextVersion(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("upsert swap record: %w", err)
	}
	return nil
}

// GetBySignature retrieves the newest version of a record.
func (s *SwapRecordStore) GetBySignature(ctx context.Context, signature string) (*domain.SwapRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT signature, raw_id, user_address, swapfromtoken, swapfromamount,
			swaptotoken, swaptoamount, source, timestamp
		FROM helius_txns_clean FINAL
		WHERE signature = ?
	`, signature)
	if err != nil {
		return nil, fmt.Errorf("get swap record by signature: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate swap record rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		r                                       domain.SwapRecord
		userAddress, fromToken, toToken, source *string
		fromAmount, toAmount                    *decimal.Decimal
		ts                                      *time.Time
	)
	err = rows.Scan(
		&r.Signature,
		&r.RawID,
		&userAddress,
		&fromToken,
		&fromAmount,
		&toToken,
		&toAmount,
		&source,
		&ts,
	)
	if err != nil {
		return nil, fmt.Errorf("scan swap record row: %w", err)
	}

	r.UserAddress = derefString(userAddress)
	r.SwapFromToken = derefString(fromToken)
	r.SwapToToken = derefString(toToken)
	r.Source = derefString(source)
	if fromAmount != nil {
		r.SwapFromAmount = decimal.NewNullDecimal(*fromAmount)
	}
	if toAmount != nil {
		r.SwapToAmount = decimal.NewNullDecimal(*toAmount)
	}
	if ts != nil {
		utc := ts.UTC()
		r.Timestamp = &utc
	}

	return &r, nil
}

// nextVersion returns a strictly increasing version based on wall-clock nanoseconds.
func (s *SwapRecordStore) nextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := uint64(time.Now().UnixNano())
	if v <= s.lastVersion {
		v = s.lastVersion + 1
	}
	s.lastVersion = v
	return v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
