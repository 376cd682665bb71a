package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

func TestTradeFlowStore_UpsertAndNullVWAP(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeFlowStore(pool)
	ctx := context.Background()

	f := &domain.TradeFlow{
		Symbol:       "BTCUSDT",
		MinuteMs:     1_700_000_040_000,
		TakerBuyQty:  6,
		TakerSellQty: 4,
		TradeCount:   10,
	}
	require.NoError(t, store.Upsert(ctx, f))

	got, err := store.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.TakerBuyQty)
	assert.Nil(t, got.VWAP)

	vwap := 101.25
	f.VWAP = &vwap
	require.NoError(t, store.Upsert(ctx, f))

	got, err = store.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	require.NoError(t, err)
	require.NotNil(t, got.VWAP)
	assert.Equal(t, vwap, *got.VWAP)
}

func TestTradeFlowStore_GetRangeSkipsMissingMinutes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeFlowStore(pool)
	ctx := context.Background()

	base := int64(1_700_000_040_000)
	for _, i := range []int64{0, 2, 4} {
		f := &domain.TradeFlow{Symbol: "BTCUSDT", MinuteMs: base + i*domain.MinuteMs, TakerBuyQty: 1}
		require.NoError(t, store.Upsert(ctx, f))
	}

	rows, err := store.GetRange(ctx, "BTCUSDT", base, base+5*domain.MinuteMs)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, base+2*domain.MinuteMs, rows[1].MinuteMs)
}

func TestTradeFlowStore_GetAtMissingReturnsNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeFlowStore(pool)

	_, err := store.GetAt(context.Background(), "BTCUSDT", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
