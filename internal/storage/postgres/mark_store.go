package postgres

import (
	"context"
	"fmt"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// MarkStore implements storage.MarkStore using PostgreSQL.
type MarkStore struct {
	pool *Pool
}

// NewMarkStore creates a new MarkStore.
func NewMarkStore(pool *Pool) *MarkStore {
	return &MarkStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarkStore = (*MarkStore)(nil)

// Upsert inserts or overwrites the sample keyed by (symbol, ts_ms).
func (s *MarkStore) Upsert(ctx context.Context, m *domain.MarkPrice) error {
	query := `
		INSERT INTO mark_1s (
			symbol, ts_ms, mark_price, index_price, funding_rate, next_funding_ms
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, ts_ms) DO UPDATE SET
			mark_price = EXCLUDED.mark_price,
			index_price = EXCLUDED.index_price,
			funding_rate = EXCLUDED.funding_rate,
			next_funding_ms = EXCLUDED.next_funding_ms
	`

	_, err := s.pool.Exec(ctx, query,
		m.Symbol, m.TsMs, m.MarkPrice, m.IndexPrice, m.FundingRate, m.NextFundingMs,
	)
	if err != nil {
		return fmt.Errorf("upsert mark price: %w", err)
	}
	return nil
}

// GetLatestBefore retrieves the most recent sample with ts_ms strictly before ts.
func (s *MarkStore) GetLatestBefore(ctx context.Context, symbol string, ts int64) (*domain.MarkPrice, error) {
	query := `
		SELECT symbol, ts_ms, mark_price, index_price, funding_rate, next_funding_ms
		FROM mark_1s
		WHERE symbol = $1 AND ts_ms < $2
		ORDER BY ts_ms DESC
		LIMIT 1
	`

	var m domain.MarkPrice
	err := s.pool.QueryRow(ctx, query, symbol, ts).Scan(
		&m.Symbol, &m.TsMs, &m.MarkPrice, &m.IndexPrice, &m.FundingRate, &m.NextFundingMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest mark price: %w", err)
	}
	return &m, nil
}
