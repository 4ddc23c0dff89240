package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

// RawEventStore implements storage.RawEventStore using PostgreSQL.
type RawEventStore struct {
	pool *Pool
}

// NewRawEventStore creates a new RawEventStore.
func NewRawEventStore(pool *Pool) *RawEventStore {
	return &RawEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawEventStore = (*RawEventStore)(nil)

// Insert appends one payload and returns its generated id.
func (s *RawEventStore) Insert(ctx context.Context, payload json.RawMessage) (int64, error) {
	if len(payload) == 0 {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO helius_hook (payload, received_at, processed)
		VALUES ($1, $2, false)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query, payload, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}
	return id, nil
}

// MarkProcessed sets processed = true. Idempotent.
func (s *RawEventStore) MarkProcessed(ctx context.Context, id int64) error {
	query := `UPDATE helius_hook SET processed = true WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark raw payload processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a raw event by id.
func (s *RawEventStore) GetByID(ctx context.Context, id int64) (*domain.RawEvent, error) {
	query := `
		SELECT id, payload, received_at, processed
		FROM helius_hook
		WHERE id = $1
	`

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get raw payload by id: %w", err)
	}
	defer rows.Close()

	events, err := scanRawEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// ListUnprocessed retrieves unprocessed events with id > afterID, ordered by id ASC.
func (s *RawEventStore) ListUnprocessed(ctx context.Context, afterID int64, limit int) ([]*domain.RawEvent, error) {
	query := `
		SELECT id, payload, received_at, processed
		FROM helius_hook
		WHERE processed = false AND id > $1
		ORDER BY id ASC
	`
	args := []any{afterID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed raw payloads: %w", err)
	}
	defer rows.Close()

	return scanRawEvents(rows)
}

// scanRawEvents scans multiple rows into a slice of RawEvent.
func scanRawEvents(rows pgx.Rows) ([]*domain.RawEvent, error) {
	var events []*domain.RawEvent

	for rows.Next() {
		var e domain.RawEvent

		err := rows.Scan(
			&e.ID,
			&e.Payload,
			&e.ReceivedAt,
			&e.Processed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw payload row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw payload rows: %w", err)
	}

	return events, nil
}
