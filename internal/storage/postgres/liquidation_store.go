package postgres

import (
	"context"
	"fmt"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// LiquidationStore implements storage.LiquidationStore using PostgreSQL.
// Append-only: liquidations have no natural unique key on the stream.
type LiquidationStore struct {
	pool *Pool
}

// NewLiquidationStore creates a new LiquidationStore.
func NewLiquidationStore(pool *Pool) *LiquidationStore {
	return &LiquidationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidationStore = (*LiquidationStore)(nil)

// Insert appends a liquidation event.
func (s *LiquidationStore) Insert(ctx context.Context, l *domain.Liquidation) error {
	query := `
		INSERT INTO liquidations (symbol, event_time_ms, side, price, qty, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		l.Symbol, l.EventTimeMs, l.Side, l.Price, l.Qty, l.Status,
	)
	if err != nil {
		return fmt.Errorf("insert liquidation: %w", err)
	}
	return nil
}

// CountRange counts events with event time in [from, to).
func (s *LiquidationStore) CountRange(ctx context.Context, symbol string, from, to int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM liquidations
		WHERE symbol = $1 AND event_time_ms >= $2 AND event_time_ms < $3
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, symbol, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("count liquidations: %w", err)
	}
	return count, nil
}
