package memory

import (
	"context"
	"sync"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

// SwapRecordStore is an in-memory implementation of storage.SwapRecordStore.
type SwapRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SwapRecord // keyed by signature
}

// NewSwapRecordStore creates a new in-memory swap record store.
func NewSwapRecordStore() *SwapRecordStore {
	return &SwapRecordStore{
		data: make(map[string]*domain.SwapRecord),
	}
}

// Upsert inserts or replaces the record keyed by signature.
func (s *SwapRecordStore) Upsert(_ context.Context, r *domain.SwapRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.Signature] = cloneSwapRecord(r)
	return nil
}

// GetBySignature retrieves a record by signature.
func (s *SwapRecordStore) GetBySignature(_ context.Context, signature string) (*domain.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSwapRecord(r), nil
}

// Len returns the number of stored records.
func (s *SwapRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func cloneSwapRecord(r *domain.SwapRecord) *domain.SwapRecord {
	copy := *r
	if r.Timestamp != nil {
		ts := *r.Timestamp
		copy.Timestamp = &ts
	}
	return &copy
}

var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)
