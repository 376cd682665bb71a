package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

func TestFeatureStore_UpsertIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(pool)
	ctx := context.Background()

	r := &domain.FeatureRow{
		Symbol:     "BTCUSDT",
		MinuteMs:   1_700_000_040_000,
		Close:      102,
		Ret1mLog:   0.0098,
		RV15m:      0.002,
		BuyRatio1m: 0.6,
		LiqCount1m: 2,
	}
	require.NoError(t, store.Upsert(ctx, r))

	// Recompute with revised values overwrites, never duplicates.
	r.Ret1mLog = 0.0099
	require.NoError(t, store.Upsert(ctx, r))

	rows, err := store.GetRange(ctx, "BTCUSDT", 0, 2_000_000_000_000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0099, rows[0].Ret1mLog)
	assert.Equal(t, 2, rows[0].LiqCount1m)
}

func TestFeatureStore_RoundTripAllFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(pool)
	ctx := context.Background()

	want := &domain.FeatureRow{
		Symbol: "BTCUSDT", MinuteMs: 1_700_000_040_000,
		Open: 100, High: 103, Low: 99, Close: 102, Volume: 10, TradeCount: 42,
		Ret1mLog: 0.0098, Ret5mLog: 0.01, Ret15mLog: -0.02, RangeBps1m: 392.2,
		RV15m: 0.002, RV60m: 0.004, VolZ60m: 1.5, AvgTradeSize1m: 0.24, VWAPGapBps: 9.9,
		TakerBuyQty1m: 6, TakerSellQty1m: 4, BuyRatio1m: 0.6, CVD1m: 2, CVD15m: 12,
		MidPrice1s: 100.1, SpreadBps1s: 19.98, DepthBidNotional: 5_000, DepthAskNotional: 4_000,
		Imbalance: 0.111, MicropriceGapBps: 24.975, MarkSpotBps: 50, OIDelta1m: 0, LiqCount1m: 2,
	}
	require.NoError(t, store.Upsert(ctx, want))

	got, err := store.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFeatureStore_GetAtMissingReturnsNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(pool)

	_, err := store.GetAt(context.Background(), "BTCUSDT", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
