package storage

import (
	"context"

	"channel-guard/internal/domain"
)

// StateStore persists per-channel control state across restarts. Writes must
// be durable before the caller proceeds: the guard persists intent before
// touching the node so a crash never strands a channel in an unknown state.
type StateStore interface {
	// Get retrieves the control state for a channel. Returns ErrNotFound
	// if the channel has never been written.
	Get(ctx context.Context, chanID string) (*domain.ChannelControlState, error)

	// Put saves the control state for a channel, replacing any prior value.
	Put(ctx context.Context, chanID string, state *domain.ChannelControlState) error
}

// ObservationStore archives per-poll observations for offline analysis.
type ObservationStore interface {
	// Insert adds one observation.
	Insert(ctx context.Context, o *domain.Observation) error

	// GetByTimeRange retrieves observations for a channel within
	// [start, end] milliseconds (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, chanID string, start, end int64) ([]*domain.Observation, error)
}
