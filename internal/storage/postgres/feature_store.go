package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const featureColumns = `
	symbol, minute_ms, open, high, low, close, volume, trade_count,
	ret_1m_log, ret_5m_log, ret_15m_log, range_bps_1m,
	rv_15m, rv_60m, vol_z_60m, avg_trade_size_1m, vwap_gap_bps,
	taker_buy_qty_1m, taker_sell_qty_1m, buy_ratio_1m, cvd_1m, cvd_15m,
	mid_price_1s, spread_bps_1s, depth_bid_notional, depth_ask_notional,
	imbalance, microprice_gap_bps, mark_spot_bps, oi_delta_1m, liq_count_1m
`

// Upsert inserts or overwrites the row keyed by (symbol, minute_ms).
// Recomputation for the same minute is idempotent.
func (s *FeatureStore) Upsert(ctx context.Context, r *domain.FeatureRow) error {
	query := `
		INSERT INTO feature_1m (` + featureColumns + `)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22,
			$23, $24, $25, $26,
			$27, $28, $29, $30, $31
		)
		ON CONFLICT (symbol, minute_ms) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			trade_count = EXCLUDED.trade_count,
			ret_1m_log = EXCLUDED.ret_1m_log,
			ret_5m_log = EXCLUDED.ret_5m_log,
			ret_15m_log = EXCLUDED.ret_15m_log,
			range_bps_1m = EXCLUDED.range_bps_1m,
			rv_15m = EXCLUDED.rv_15m,
			rv_60m = EXCLUDED.rv_60m,
			vol_z_60m = EXCLUDED.vol_z_60m,
			avg_trade_size_1m = EXCLUDED.avg_trade_size_1m,
			vwap_gap_bps = EXCLUDED.vwap_gap_bps,
			taker_buy_qty_1m = EXCLUDED.taker_buy_qty_1m,
			taker_sell_qty_1m = EXCLUDED.taker_sell_qty_1m,
			buy_ratio_1m = EXCLUDED.buy_ratio_1m,
			cvd_1m = EXCLUDED.cvd_1m,
			cvd_15m = EXCLUDED.cvd_15m,
			mid_price_1s = EXCLUDED.mid_price_1s,
			spread_bps_1s = EXCLUDED.spread_bps_1s,
			depth_bid_notional = EXCLUDED.depth_bid_notional,
			depth_ask_notional = EXCLUDED.depth_ask_notional,
			imbalance = EXCLUDED.imbalance,
			microprice_gap_bps = EXCLUDED.microprice_gap_bps,
			mark_spot_bps = EXCLUDED.mark_spot_bps,
			oi_delta_1m = EXCLUDED.oi_delta_1m,
			liq_count_1m = EXCLUDED.liq_count_1m
	`

	_, err := s.pool.Exec(ctx, query, featureArgs(r)...)
	if err != nil {
		return fmt.Errorf("upsert feature row: %w", err)
	}
	return nil
}

// GetAt retrieves the row at exactly minuteMs.
func (s *FeatureStore) GetAt(ctx context.Context, symbol string, minuteMs int64) (*domain.FeatureRow, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM feature_1m
		WHERE symbol = $1 AND minute_ms = $2
	`

	r, err := scanFeature(s.pool.QueryRow(ctx, query, symbol, minuteMs))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get feature row: %w", err)
	}
	return r, nil
}

// GetRange retrieves rows within [from, to), ordered by minute ASC.
func (s *FeatureStore) GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.FeatureRow, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM feature_1m
		WHERE symbol = $1 AND minute_ms >= $2 AND minute_ms < $3
		ORDER BY minute_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get feature range: %w", err)
	}
	defer rows.Close()

	var out []*domain.FeatureRow
	for rows.Next() {
		r, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	return out, nil
}

func featureArgs(r *domain.FeatureRow) []any {
	return []any{
		r.Symbol, r.MinuteMs, r.Open, r.High, r.Low, r.Close, r.Volume, r.TradeCount,
		r.Ret1mLog, r.Ret5mLog, r.Ret15mLog, r.RangeBps1m,
		r.RV15m, r.RV60m, r.VolZ60m, r.AvgTradeSize1m, r.VWAPGapBps,
		r.TakerBuyQty1m, r.TakerSellQty1m, r.BuyRatio1m, r.CVD1m, r.CVD15m,
		r.MidPrice1s, r.SpreadBps1s, r.DepthBidNotional, r.DepthAskNotional,
		r.Imbalance, r.MicropriceGapBps, r.MarkSpotBps, r.OIDelta1m, r.LiqCount1m,
	}
}

func scanFeature(row pgx.Row) (*domain.FeatureRow, error) {
	var r domain.FeatureRow
	err := row.Scan(
		&r.Symbol, &r.MinuteMs, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.TradeCount,
		&r.Ret1mLog, &r.Ret5mLog, &r.Ret15mLog, &r.RangeBps1m,
		&r.RV15m, &r.RV60m, &r.VolZ60m, &r.AvgTradeSize1m, &r.VWAPGapBps,
		&r.TakerBuyQty1m, &r.TakerSellQty1m, &r.BuyRatio1m, &r.CVD1m, &r.CVD15m,
		&r.MidPrice1s, &r.SpreadBps1s, &r.DepthBidNotional, &r.DepthAskNotional,
		&r.Imbalance, &r.MicropriceGapBps, &r.MarkSpotBps, &r.OIDelta1m, &r.LiqCount1m,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
