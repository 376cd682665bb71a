package postgres

import (
	"context"
	"fmt"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// DepthStore implements storage.DepthStore using PostgreSQL. The raw level
// arrays are stored as gzip blobs in bytea columns.
type DepthStore struct {
	pool *Pool
}

// NewDepthStore creates a new DepthStore.
func NewDepthStore(pool *Pool) *DepthStore {
	return &DepthStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DepthStore = (*DepthStore)(nil)

// Upsert inserts or overwrites the snapshot keyed by (symbol, ts_ms).
func (s *DepthStore) Upsert(ctx context.Context, d *domain.DepthSnapshot) error {
	query := `
		INSERT INTO depth_1s (
			symbol, ts_ms, best_bid, best_ask, mid_price, spread_bps,
			bid_notional, ask_notional, imbalance, microprice, microprice_gap_bps,
			bids_gzip, asks_gzip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (symbol, ts_ms) DO UPDATE SET
			best_bid = EXCLUDED.best_bid,
			best_ask = EXCLUDED.best_ask,
			mid_price = EXCLUDED.mid_price,
			spread_bps = EXCLUDED.spread_bps,
			bid_notional = EXCLUDED.bid_notional,
			ask_notional = EXCLUDED.ask_notional,
			imbalance = EXCLUDED.imbalance,
			microprice = EXCLUDED.microprice,
			microprice_gap_bps = EXCLUDED.microprice_gap_bps,
			bids_gzip = EXCLUDED.bids_gzip,
			asks_gzip = EXCLUDED.asks_gzip
	`

	_, err := s.pool.Exec(ctx, query,
		d.Symbol, d.TsMs, d.BestBid, d.BestAsk, d.MidPrice, d.SpreadBps,
		d.BidNotional, d.AskNotional, d.Imbalance, d.Microprice, d.MicropriceGapBps,
		d.BidsGzip, d.AsksGzip,
	)
	if err != nil {
		return fmt.Errorf("upsert depth snapshot: %w", err)
	}
	return nil
}

// GetLatestBefore retrieves the most recent snapshot with ts_ms strictly before ts.
func (s *DepthStore) GetLatestBefore(ctx context.Context, symbol string, ts int64) (*domain.DepthSnapshot, error) {
	query := `
		SELECT symbol, ts_ms, best_bid, best_ask, mid_price, spread_bps,
		       bid_notional, ask_notional, imbalance, microprice, microprice_gap_bps,
		       bids_gzip, asks_gzip
		FROM depth_1s
		WHERE symbol = $1 AND ts_ms < $2
		ORDER BY ts_ms DESC
		LIMIT 1
	`

	var d domain.DepthSnapshot
	err := s.pool.QueryRow(ctx, query, symbol, ts).Scan(
		&d.Symbol, &d.TsMs, &d.BestBid, &d.BestAsk, &d.MidPrice, &d.SpreadBps,
		&d.BidNotional, &d.AskNotional, &d.Imbalance, &d.Microprice, &d.MicropriceGapBps,
		&d.BidsGzip, &d.AsksGzip,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest depth snapshot: %w", err)
	}
	return &d, nil
}
