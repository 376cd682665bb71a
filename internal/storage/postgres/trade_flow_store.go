package postgres

import (
	"context"
	"fmt"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// TradeFlowStore implements storage.TradeFlowStore using PostgreSQL.
type TradeFlowStore struct {
	pool *Pool
}

// NewTradeFlowStore creates a new TradeFlowStore.
func NewTradeFlowStore(pool *Pool) *TradeFlowStore {
	return &TradeFlowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeFlowStore = (*TradeFlowStore)(nil)

// Upsert inserts or overwrites the aggregate keyed by (symbol, minute_ms).
func (s *TradeFlowStore) Upsert(ctx context.Context, f *domain.TradeFlow) error {
	query := `
		INSERT INTO trade_flow_1m (
			symbol, minute_ms, taker_buy_qty, taker_sell_qty, trade_count, vwap
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, minute_ms) DO UPDATE SET
			taker_buy_qty = EXCLUDED.taker_buy_qty,
			taker_sell_qty = EXCLUDED.taker_sell_qty,
			trade_count = EXCLUDED.trade_count,
			vwap = EXCLUDED.vwap
	`

	_, err := s.pool.Exec(ctx, query,
		f.Symbol, f.MinuteMs, f.TakerBuyQty, f.TakerSellQty, f.TradeCount, f.VWAP,
	)
	if err != nil {
		return fmt.Errorf("upsert trade flow: %w", err)
	}
	return nil
}

// GetAt retrieves the aggregate at exactly minuteMs.
func (s *TradeFlowStore) GetAt(ctx context.Context, symbol string, minuteMs int64) (*domain.TradeFlow, error) {
	query := `
		SELECT symbol, minute_ms, taker_buy_qty, taker_sell_qty, trade_count, vwap
		FROM trade_flow_1m
		WHERE symbol = $1 AND minute_ms = $2
	`

	var f domain.TradeFlow
	err := s.pool.QueryRow(ctx, query, symbol, minuteMs).Scan(
		&f.Symbol, &f.MinuteMs, &f.TakerBuyQty, &f.TakerSellQty, &f.TradeCount, &f.VWAP,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade flow: %w", err)
	}
	return &f, nil
}

// GetRange retrieves aggregates within [from, to), ordered by minute ASC.
func (s *TradeFlowStore) GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.TradeFlow, error) {
	query := `
		SELECT symbol, minute_ms, taker_buy_qty, taker_sell_qty, trade_count, vwap
		FROM trade_flow_1m
		WHERE symbol = $1 AND minute_ms >= $2 AND minute_ms < $3
		ORDER BY minute_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get trade flow range: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeFlow
	for rows.Next() {
		var f domain.TradeFlow
		if err := rows.Scan(
			&f.Symbol, &f.MinuteMs, &f.TakerBuyQty, &f.TakerSellQty, &f.TradeCount, &f.VWAP,
		); err != nil {
			return nil, fmt.Errorf("scan trade flow: %w", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade flows: %w", err)
	}
	return out, nil
}
