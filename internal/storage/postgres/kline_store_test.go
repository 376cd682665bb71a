package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

func TestKlineStore_UpsertAndGetAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKlineStore(pool)
	ctx := context.Background()

	quote := 1_020_000.0
	k := &domain.Kline{
		Symbol:      "BTCUSDT",
		OpenTimeMs:  1_700_000_040_000,
		Open:        100,
		High:        103,
		Low:         99,
		Close:       102,
		Volume:      10,
		TradeCount:  42,
		QuoteVolume: &quote,
	}
	require.NoError(t, store.Upsert(ctx, k))

	got, err := store.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	require.NoError(t, err)
	assert.Equal(t, 102.0, got.Close)
	assert.Equal(t, 42, got.TradeCount)
	require.NotNil(t, got.QuoteVolume)
	assert.Equal(t, quote, *got.QuoteVolume)
	assert.Nil(t, got.TakerBuyVolume)
}

func TestKlineStore_UpsertOverwritesSameKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKlineStore(pool)
	ctx := context.Background()

	k := &domain.Kline{Symbol: "BTCUSDT", OpenTimeMs: 1_700_000_040_000, Close: 100, Volume: 1, TradeCount: 1}
	require.NoError(t, store.Upsert(ctx, k))

	k.Close = 105
	k.Volume = 2
	require.NoError(t, store.Upsert(ctx, k))

	got, err := store.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	require.NoError(t, err)
	assert.Equal(t, 105.0, got.Close)
	assert.Equal(t, 2.0, got.Volume)

	rows, err := store.GetRange(ctx, "BTCUSDT", 0, 2_000_000_000_000)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestKlineStore_GetAtMissingReturnsNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKlineStore(pool)

	_, err := store.GetAt(context.Background(), "BTCUSDT", 123)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKlineStore_GetRangeIsHalfOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKlineStore(pool)
	ctx := context.Background()

	base := int64(1_700_000_040_000)
	for i := int64(0); i < 3; i++ {
		k := &domain.Kline{Symbol: "BTCUSDT", OpenTimeMs: base + i*domain.MinuteMs, Close: 100 + float64(i)}
		require.NoError(t, store.Upsert(ctx, k))
	}

	rows, err := store.GetRange(ctx, "BTCUSDT", base, base+2*domain.MinuteMs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, base, rows[0].OpenTimeMs)
	assert.Equal(t, base+domain.MinuteMs, rows[1].OpenTimeMs)
}
