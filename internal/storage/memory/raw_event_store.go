package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

// RawEventStore is an in-memory implementation of storage.RawEventStore.
type RawEventStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.RawEvent
	now    func() time.Time
}

// NewRawEventStore creates a new in-memory raw event store.
func NewRawEventStore() *RawEventStore {
	return &RawEventStore{
		data: make(map[int64]*domain.RawEvent),
		now:  time.Now,
	}
}

// Insert appends a payload and returns its generated id.
func (s *RawEventStore) Insert(_ context.Context, payload json.RawMessage) (int64, error) {
	if len(payload) == 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.data[id] = &domain.RawEvent{
		ID:         id,
		Payload:    append(json.RawMessage(nil), payload...),
		ReceivedAt: s.now().UTC(),
	}
	return id, nil
}

// MarkProcessed sets the processed flag. Idempotent.
func (s *RawEventStore) MarkProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.Processed = true
	return nil
}

// GetByID retrieves a raw event by id.
func (s *RawEventStore) GetByID(_ context.Context, id int64) (*domain.RawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRawEvent(e), nil
}

// ListUnprocessed retrieves unprocessed events with id > afterID, ordered by id ASC.
func (s *RawEventStore) ListUnprocessed(_ context.Context, afterID int64, limit int) ([]*domain.RawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawEvent
	for id, e := range s.data {
		if id > afterID && !e.Processed {
			result = append(result, cloneRawEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneRawEvent(e *domain.RawEvent) *domain.RawEvent {
	copy := *e
	copy.Payload = append(json.RawMessage(nil), e.Payload...)
	return &copy
}

var _ storage.RawEventStore = (*RawEventStore)(nil)
