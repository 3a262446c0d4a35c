package postgres

import (
	"context"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

// StateStore is a PostgreSQL implementation of storage.StateStore backed by
// the channel_control_state table, one row per channel.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new PostgreSQL state store.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// Get retrieves the control state for a channel.
func (s *StateStore) Get(ctx context.Context, chanID string) (*domain.ChannelControlState, error) {
	if chanID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT blocker_active, original_fee_ppm, last_htlc_ratio
		FROM channel_control_state
		WHERE chan_id = $1
	`, chanID)

	var state domain.ChannelControlState
	err := row.Scan(&state.BlockerActive, &state.OriginalFeePPM, &state.LastHTLCRatio)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &state, nil
}

// Put saves the control state for a channel. Uses upsert to handle initial
// insert and subsequent updates.
func (s *StateStore) Put(ctx context.Context, chanID string, state *domain.ChannelControlState) error {
	if chanID == "" || state == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO channel_control_state (chan_id, blocker_active, original_fee_ppm, last_htlc_ratio, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (chan_id) DO UPDATE
		SET blocker_active = EXCLUDED.blocker_active,
		    original_fee_ppm = EXCLUDED.original_fee_ppm,
		    last_htlc_ratio = EXCLUDED.last_htlc_ratio,
		    updated_at = NOW()
	`, chanID, state.BlockerActive, state.OriginalFeePPM, state.LastHTLCRatio)

	return err
}
