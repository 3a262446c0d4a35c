// Package file provides a JSON-file-backed state store. It is the default
// backend: one small file, human-readable, survives restarts without any
// database.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

// StateStore is a file-backed implementation of storage.StateStore. The file
// holds a JSON object keyed by channel id, so one file can serve several
// guard processes pointed at different channels.
type StateStore struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

// NewStateStore creates a state store persisting to the given path.
func NewStateStore(path string, logger *log.Logger) *StateStore {
	return &StateStore{path: path, logger: logger}
}

// Get retrieves the control state for a channel.
func (s *StateStore) Get(_ context.Context, chanID string) (*domain.ChannelControlState, error) {
	if chanID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.load()
	if err != nil {
		return nil, err
	}

	state, ok := states[chanID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return state.Clone(), nil
}

// Put saves the control state for a channel. The write is atomic: the full
// map is written to a temp file and renamed over the old one, so a crash
// mid-write leaves the previous state intact.
func (s *StateStore) Put(_ context.Context, chanID string, state *domain.ChannelControlState) error {
	if chanID == "" || state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.load()
	if err != nil {
		return err
	}

	states[chanID] = state.Clone()
	return s.save(states)
}

// load reads the state file. A missing file starts empty; a corrupt file is
// logged and treated as empty rather than wedging the guard forever.
func (s *StateStore) load() (map[string]*domain.ChannelControlState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*domain.ChannelControlState), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var states map[string]*domain.ChannelControlState
	if err := json.Unmarshal(data, &states); err != nil {
		s.logger.Printf("WARN: state file %s is corrupt, starting fresh: %v", s.path, err)
		return make(map[string]*domain.ChannelControlState), nil
	}
	if states == nil {
		states = make(map[string]*domain.ChannelControlState)
	}
	return states, nil
}

func (s *StateStore) save(states map[string]*domain.ChannelControlState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
