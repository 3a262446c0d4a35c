package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

func TestObservationStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000} {
		require.NoError(t, store.Insert(ctx, &domain.Observation{
			ChanID:        "123",
			TimestampMs:   ts,
			Capacity:      1_000_000,
			LocalBalance:  800_000,
			Ratio:         0.8,
			FeeRatePPM:    250,
			MaxHTLCSat:    450_000,
			BlockerActive: false,
			Action:        domain.ActionNone,
		}))
	}
	// Different channel, must not appear in the query
	require.NoError(t, store.Insert(ctx, &domain.Observation{
		ChanID:      "456",
		TimestampMs: 1500,
		Action:      domain.ActionNone,
	}))

	got, err := store.GetByTimeRange(ctx, "123", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1000), got[0].TimestampMs)
	require.Equal(t, int64(2000), got[1].TimestampMs)
	require.Equal(t, int64(450_000), got[0].MaxHTLCSat)
	require.InDelta(t, 0.8, got[0].Ratio, 1e-9)
}

func TestObservationStore_RoundTripsActions(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	actions := []string{domain.ActionBlock, domain.ActionUnblock, domain.ActionHTLCOnly}
	for i, action := range actions {
		require.NoError(t, store.Insert(ctx, &domain.Observation{
			ChanID:        "123",
			TimestampMs:   int64(1000 * (i + 1)),
			BlockerActive: action == domain.ActionBlock,
			Action:        action,
		}))
	}

	got, err := store.GetByTimeRange(ctx, "123", 0, 10_000)
	require.NoError(t, err)
	require.Len(t, got, len(actions))
	for i, action := range actions {
		require.Equal(t, action, got[i].Action)
	}
	require.True(t, got[0].BlockerActive)
	require.False(t, got[1].BlockerActive)
}

func TestObservationStore_EmptyRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)

	got, err := store.GetByTimeRange(context.Background(), "123", 0, 1000)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestObservationStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	require.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Insert(ctx, &domain.Observation{}), storage.ErrInvalidInput)

	_, err := store.GetByTimeRange(ctx, "", 0, 1)
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
