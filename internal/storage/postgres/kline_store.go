package postgres

import (
	"context"
	"fmt"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// KlineStore implements storage.KlineStore using PostgreSQL.
type KlineStore struct {
	pool *Pool
}

// NewKlineStore creates a new KlineStore.
func NewKlineStore(pool *Pool) *KlineStore {
	return &KlineStore{pool: pool}
}

// Compile-time interface check.
var _ storage.KlineStore = (*KlineStore)(nil)

// Upsert inserts or overwrites the candle keyed by (symbol, open_time_ms).
func (s *KlineStore) Upsert(ctx context.Context, k *domain.Kline) error {
	query := `
		INSERT INTO kline_1m (
			symbol, open_time_ms, open, high, low, close, volume, trade_count,
			quote_volume, taker_buy_volume, taker_buy_quote_volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, open_time_ms) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			trade_count = EXCLUDED.trade_count,
			quote_volume = EXCLUDED.quote_volume,
			taker_buy_volume = EXCLUDED.taker_buy_volume,
			taker_buy_quote_volume = EXCLUDED.taker_buy_quote_volume
	`

	_, err := s.pool.Exec(ctx, query,
		k.Symbol,
		k.OpenTimeMs,
		k.Open,
		k.High,
		k.Low,
		k.Close,
		k.Volume,
		k.TradeCount,
		k.QuoteVolume,
		k.TakerBuyVolume,
		k.TakerBuyQuoteVolume,
	)
	if err != nil {
		return fmt.Errorf("upsert kline: %w", err)
	}
	return nil
}

// GetAt retrieves the candle at exactly openTimeMs.
func (s *KlineStore) GetAt(ctx context.Context, symbol string, openTimeMs int64) (*domain.Kline, error) {
	query := `
		SELECT symbol, open_time_ms, open, high, low, close, volume, trade_count,
		       quote_volume, taker_buy_volume, taker_buy_quote_volume
		FROM kline_1m
		WHERE symbol = $1 AND open_time_ms = $2
	`

	var k domain.Kline
	err := s.pool.QueryRow(ctx, query, symbol, openTimeMs).Scan(
		&k.Symbol, &k.OpenTimeMs, &k.Open, &k.High, &k.Low, &k.Close,
		&k.Volume, &k.TradeCount,
		&k.QuoteVolume, &k.TakerBuyVolume, &k.TakerBuyQuoteVolume,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get kline: %w", err)
	}
	return &k, nil
}

// GetRange retrieves candles within [from, to), ordered by open time ASC.
func (s *KlineStore) GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.Kline, error) {
	query := `
		SELECT symbol, open_time_ms, open, high, low, close, volume, trade_count,
		       quote_volume, taker_buy_volume, taker_buy_quote_volume
		FROM kline_1m
		WHERE symbol = $1 AND open_time_ms >= $2 AND open_time_ms < $3
		ORDER BY open_time_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get kline range: %w", err)
	}
	defer rows.Close()

	var out []*domain.Kline
	for rows.Next() {
		var k domain.Kline
		if err := rows.Scan(
			&k.Symbol, &k.OpenTimeMs, &k.Open, &k.High, &k.Low, &k.Close,
			&k.Volume, &k.TradeCount,
			&k.QuoteVolume, &k.TakerBuyVolume, &k.TakerBuyQuoteVolume,
		); err != nil {
			return nil, fmt.Errorf("scan kline: %w", err)
		}
		out = append(out, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate klines: %w", err)
	}
	return out, nil
}
