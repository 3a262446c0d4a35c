package memory

import (
	"context"
	"sort"
	"sync"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu           sync.RWMutex
	observations []*domain.Observation
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{}
}

// Insert adds one observation.
func (s *ObservationStore) Insert(_ context.Context, o *domain.Observation) error {
	if o == nil || o.ChanID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obs := *o
	s.observations = append(s.observations, &obs)
	return nil
}

// GetByTimeRange retrieves observations for a channel within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *ObservationStore) GetByTimeRange(_ context.Context, chanID string, start, end int64) ([]*domain.Observation, error) {
	if chanID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Observation
	for _, o := range s.observations {
		if o.ChanID != chanID || o.TimestampMs < start || o.TimestampMs > end {
			continue
		}
		obs := *o
		out = append(out, &obs)
	}

	// Inserts arrive in wall-clock order, but sort anyway for callers that
	// backfill.
	sort.Slice(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}
