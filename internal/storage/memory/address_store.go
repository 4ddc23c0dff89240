package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"helius-swap-ingest/internal/storage"
)

// AddressStore is an in-memory implementation of storage.AddressSource.
type AddressStore struct {
	mu   sync.RWMutex
	data map[string]time.Time // address -> last updated
}

// NewAddressStore creates a new in-memory address store.
func NewAddressStore() *AddressStore {
	return &AddressStore{
		data: make(map[string]time.Time),
	}
}

// Put records an address with its update time. Later times win.
func (s *AddressStore) Put(address string, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.data[address]; ok && prev.After(updatedAt) {
		return
	}
	s.data[address] = updatedAt
}

// ListAddresses returns distinct addresses, sorted for determinism.
func (s *AddressStore) ListAddresses(_ context.Context, since time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	for addr, updatedAt := range s.data {
		if addr == "" {
			continue
		}
		if !since.IsZero() && updatedAt.Before(since) {
			continue
		}
		result = append(result, addr)
	}
	sort.Strings(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.AddressSource = (*AddressStore)(nil)
