// Package memory provides in-memory storage implementations for testing and
// single-process runs without a database.
package memory

import (
	"context"
	"sync"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.ChannelControlState
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]*domain.ChannelControlState),
	}
}

// Get retrieves the control state for a channel.
func (s *StateStore) Get(_ context.Context, chanID string) (*domain.ChannelControlState, error) {
	if chanID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[chanID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return state.Clone(), nil
}

// Put saves the control state for a channel.
func (s *StateStore) Put(_ context.Context, chanID string, state *domain.ChannelControlState) error {
	if chanID == "" || state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[chanID] = state.Clone()
	return nil
}
