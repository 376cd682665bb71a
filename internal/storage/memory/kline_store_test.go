package memory

import (
	"context"
	"errors"
	"testing"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

func TestKlineStore_UpsertOverwrites(t *testing.T) {
	store := NewKlineStore()
	ctx := context.Background()

	k := &domain.Kline{Symbol: "BTCUSDT", OpenTimeMs: 1000 * 60, Close: 100}
	if err := store.Upsert(ctx, k); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	k.Close = 105
	if err := store.Upsert(ctx, k); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := store.GetAt(ctx, "BTCUSDT", 1000*60)
	if err != nil {
		t.Fatalf("GetAt failed: %v", err)
	}
	if got.Close != 105 {
		t.Errorf("Expected overwritten close 105, got %v", got.Close)
	}
}

func TestKlineStore_GetAtNotFound(t *testing.T) {
	store := NewKlineStore()

	_, err := store.GetAt(context.Background(), "BTCUSDT", 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestKlineStore_GetRangeHalfOpenAndSorted(t *testing.T) {
	store := NewKlineStore()
	ctx := context.Background()

	base := int64(1_700_000_040_000)
	// Insert out of order.
	for _, i := range []int64{2, 0, 1, 3} {
		k := &domain.Kline{Symbol: "BTCUSDT", OpenTimeMs: base + i*domain.MinuteMs, Close: float64(i)}
		if err := store.Upsert(ctx, k); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	rows, err := store.GetRange(ctx, "BTCUSDT", base, base+3*domain.MinuteMs)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].OpenTimeMs >= rows[i].OpenTimeMs {
			t.Errorf("Expected ascending order: %d >= %d", rows[i-1].OpenTimeMs, rows[i].OpenTimeMs)
		}
	}
}

func TestKlineStore_ReturnsCopies(t *testing.T) {
	store := NewKlineStore()
	ctx := context.Background()

	k := &domain.Kline{Symbol: "BTCUSDT", OpenTimeMs: 60_000, Close: 100}
	if err := store.Upsert(ctx, k); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, _ := store.GetAt(ctx, "BTCUSDT", 60_000)
	got.Close = 999

	again, _ := store.GetAt(ctx, "BTCUSDT", 60_000)
	if again.Close != 100 {
		t.Errorf("Mutating a returned row must not affect the store, got %v", again.Close)
	}
}
