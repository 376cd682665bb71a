// Package storage defines the persistence contracts between the ingestion
// path (writers) and the feature engine (readers). Raw tables are upserted
// by natural key so recomputation and replays of the same message are
// idempotent; gaps during disconnects are accepted losses, never recovered.
package storage

import (
	"context"

	"perp-feature-lab/internal/domain"
)

// KlineStore provides access to kline_1m storage.
type KlineStore interface {
	// Upsert inserts or overwrites the candle keyed by (symbol, open_time_ms).
	Upsert(ctx context.Context, k *domain.Kline) error

	// GetAt retrieves the candle at exactly openTimeMs.
	// Returns ErrNotFound if it does not exist.
	GetAt(ctx context.Context, symbol string, openTimeMs int64) (*domain.Kline, error)

	// GetRange retrieves candles within [from, to), ordered by open time ASC.
	GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.Kline, error)
}

// MarkStore provides access to mark_1s storage.
type MarkStore interface {
	// Upsert inserts or overwrites the sample keyed by (symbol, ts_ms).
	Upsert(ctx context.Context, m *domain.MarkPrice) error

	// GetLatestBefore retrieves the most recent sample with ts_ms strictly
	// before ts. Returns ErrNotFound if none exists.
	GetLatestBefore(ctx context.Context, symbol string, ts int64) (*domain.MarkPrice, error)
}

// DepthStore provides access to depth_1s storage.
type DepthStore interface {
	// Upsert inserts or overwrites the snapshot keyed by (symbol, ts_ms).
	Upsert(ctx context.Context, d *domain.DepthSnapshot) error

	// GetLatestBefore retrieves the most recent snapshot with ts_ms strictly
	// before ts. Returns ErrNotFound if none exists.
	GetLatestBefore(ctx context.Context, symbol string, ts int64) (*domain.DepthSnapshot, error)
}

// LiquidationStore provides access to liquidations storage. Append-only.
type LiquidationStore interface {
	// Insert appends a liquidation event.
	Insert(ctx context.Context, l *domain.Liquidation) error

	// CountRange counts events with event time in [from, to).
	CountRange(ctx context.Context, symbol string, from, to int64) (int, error)
}

// TradeFlowStore provides access to trade_flow_1m storage.
type TradeFlowStore interface {
	// Upsert inserts or overwrites the aggregate keyed by (symbol, minute_ms).
	Upsert(ctx context.Context, f *domain.TradeFlow) error

	// GetAt retrieves the aggregate at exactly minuteMs.
	// Returns ErrNotFound if it does not exist.
	GetAt(ctx context.Context, symbol string, minuteMs int64) (*domain.TradeFlow, error)

	// GetRange retrieves aggregates within [from, to), ordered by minute ASC.
	GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.TradeFlow, error)
}

// FeatureStore provides access to feature_1m storage.
type FeatureStore interface {
	// Upsert inserts or overwrites the row keyed by (symbol, minute_ms).
	Upsert(ctx context.Context, r *domain.FeatureRow) error

	// GetAt retrieves the row at exactly minuteMs.
	// Returns ErrNotFound if it does not exist.
	GetAt(ctx context.Context, symbol string, minuteMs int64) (*domain.FeatureRow, error)

	// GetRange retrieves rows within [from, to), ordered by minute ASC.
	GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.FeatureRow, error)
}
