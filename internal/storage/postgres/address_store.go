package postgres

import (
	"context"
	"fmt"
	"time"

	"helius-swap-ingest/internal/storage"
)

// AddressStore implements storage.AddressSource over the trader_filtered table.
type AddressStore struct {
	pool *Pool
}

// NewAddressStore creates a new AddressStore.
func NewAddressStore(pool *Pool) *AddressStore {
	return &AddressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AddressSource = (*AddressStore)(nil)

// ListAddresses returns distinct non-empty owners, optionally restricted by update time and count.
func (s *AddressStore) ListAddresses(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT owner
		FROM trader_filtered
		WHERE owner IS NOT NULL AND owner <> ''
	`
	var args []any
	if !since.IsZero() {
		args = append(args, since.UTC())
		query += fmt.Sprintf(" AND updated_at >= $%d", len(args))
	}
	query += " ORDER BY owner"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}

	return addresses, nil
}
