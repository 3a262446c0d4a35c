package clickhouse

import (
	"context"
	"fmt"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
// Observations are append-only telemetry; MergeTree holds them ordered by
// (chan_id, timestamp_ms) for cheap range scans.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// Insert adds one observation.
func (s *ObservationStore) Insert(ctx context.Context, o *domain.Observation) error {
	if o == nil || o.ChanID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO liquidity_observations (
			chan_id, timestamp_ms, capacity, local_balance, ratio,
			fee_rate_ppm, max_htlc_sat, blocker_active, action
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		o.ChanID, uint64(o.TimestampMs), o.Capacity, o.LocalBalance, o.Ratio,
		o.FeeRatePPM, o.MaxHTLCSat, o.BlockerActive, o.Action,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves observations for a channel within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *ObservationStore) GetByTimeRange(ctx context.Context, chanID string, start, end int64) ([]*domain.Observation, error) {
	if chanID == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT chan_id, timestamp_ms, capacity, local_balance, ratio,
		       fee_rate_ppm, max_htlc_sat, blocker_active, action
		FROM liquidity_observations
		WHERE chan_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, chanID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var observations []*domain.Observation
	for rows.Next() {
		var o domain.Observation
		var timestampMs uint64

		err := rows.Scan(
			&o.ChanID, &timestampMs, &o.Capacity, &o.LocalBalance, &o.Ratio,
			&o.FeeRatePPM, &o.MaxHTLCSat, &o.BlockerActive, &o.Action,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		o.TimestampMs = int64(timestampMs)
		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return observations, nil
}
