package memory

import (
	"context"
	"errors"
	"testing"

	"channel-guard/internal/domain"
	"channel-guard/internal/storage"
)

func TestObservationStore_InsertAndQuery(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	for _, ts := range []int64{3000, 1000, 2000} {
		err := store.Insert(ctx, &domain.Observation{
			ChanID:      "123",
			TimestampMs: ts,
			Ratio:       0.5,
			Action:      domain.ActionNone,
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	// Different channel, should not appear
	if err := store.Insert(ctx, &domain.Observation{ChanID: "456", TimestampMs: 1500}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "123", 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d observations, want 2", len(got))
	}
	if got[0].TimestampMs != 1000 || got[1].TimestampMs != 2000 {
		t.Errorf("not ordered by timestamp: %d, %d", got[0].TimestampMs, got[1].TimestampMs)
	}
}

func TestObservationStore_EmptyRange(t *testing.T) {
	store := NewObservationStore()

	got, err := store.GetByTimeRange(context.Background(), "123", 0, 1000)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d observations, want 0", len(got))
	}
}

func TestObservationStore_InvalidInput(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert(nil) err = %v, want ErrInvalidInput", err)
	}
	if err := store.Insert(ctx, &domain.Observation{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert(empty chan) err = %v, want ErrInvalidInput", err)
	}
	if _, err := store.GetByTimeRange(ctx, "", 0, 1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("GetByTimeRange(\"\") err = %v, want ErrInvalidInput", err)
	}
}
