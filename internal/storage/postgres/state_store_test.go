package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

func TestStateStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	_, err := store.Get(context.Background(), "123")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStateStore_PutGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	state := &domain.ChannelControlState{
		BlockerActive:  true,
		OriginalFeePPM: ptr(int64(250)),
		LastHTLCRatio:  ptr(0.42),
	}
	require.NoError(t, store.Put(ctx, "123", state))

	got, err := store.Get(ctx, "123")
	require.NoError(t, err)
	require.True(t, got.BlockerActive)
	require.NotNil(t, got.OriginalFeePPM)
	require.Equal(t, int64(250), *got.OriginalFeePPM)
	require.NotNil(t, got.LastHTLCRatio)
	require.InDelta(t, 0.42, *got.LastHTLCRatio, 1e-9)
}

func TestStateStore_UpsertOverwrites(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "123", &domain.ChannelControlState{
		BlockerActive:  true,
		OriginalFeePPM: ptr(int64(250)),
	}))
	require.NoError(t, store.Put(ctx, "123", &domain.ChannelControlState{
		BlockerActive: false,
		LastHTLCRatio: ptr(0.5),
	}))

	got, err := store.Get(ctx, "123")
	require.NoError(t, err)
	require.False(t, got.BlockerActive)
	require.Nil(t, got.OriginalFeePPM, "cleared fee must overwrite to NULL")
	require.NotNil(t, got.LastHTLCRatio)
}

func TestStateStore_NullableFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "123", &domain.ChannelControlState{}))

	got, err := store.Get(ctx, "123")
	require.NoError(t, err)
	require.False(t, got.BlockerActive)
	require.Nil(t, got.OriginalFeePPM)
	require.Nil(t, got.LastHTLCRatio)
}

func TestStateStore_SeparateChannels(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "111", &domain.ChannelControlState{BlockerActive: true}))
	require.NoError(t, store.Put(ctx, "222", &domain.ChannelControlState{}))

	first, err := store.Get(ctx, "111")
	require.NoError(t, err)
	require.True(t, first.BlockerActive)

	second, err := store.Get(ctx, "222")
	require.NoError(t, err)
	require.False(t, second.BlockerActive)
}

func TestStateStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "")
	require.ErrorIs(t, err, storage.ErrInvalidInput)
	require.ErrorIs(t, store.Put(ctx, "", &domain.ChannelControlState{}), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Put(ctx, "123", nil), storage.ErrInvalidInput)
}
