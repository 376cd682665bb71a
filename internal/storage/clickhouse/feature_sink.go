package clickhouse

import (
	"context"
	"fmt"

	"perp-feature-lab/internal/domain"
)

// FeatureSink batch-inserts feature rows into the analytics table. The table
// is a ReplacingMergeTree keyed by (symbol, minute_ms), so replayed upserts
// collapse to one row at merge time instead of failing.
type FeatureSink struct {
	conn *Conn
}

// NewFeatureSink creates a new FeatureSink.
func NewFeatureSink(conn *Conn) *FeatureSink {
	return &FeatureSink{conn: conn}
}

// Insert appends one feature row.
func (s *FeatureSink) Insert(ctx context.Context, r *domain.FeatureRow) error {
	return s.InsertBulk(ctx, []*domain.FeatureRow{r})
}

// InsertBulk appends multiple feature rows in one batch.
func (s *FeatureSink) InsertBulk(ctx context.Context, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feature_1m (
			symbol, minute_ms, open, high, low, close, volume, trade_count,
			ret_1m_log, ret_5m_log, ret_15m_log, range_bps_1m,
			rv_15m, rv_60m, vol_z_60m, avg_trade_size_1m, vwap_gap_bps,
			taker_buy_qty_1m, taker_sell_qty_1m, buy_ratio_1m, cvd_1m, cvd_15m,
			mid_price_1s, spread_bps_1s, depth_bid_notional, depth_ask_notional,
			imbalance, microprice_gap_bps, mark_spot_bps, oi_delta_1m, liq_count_1m
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Symbol, uint64(r.MinuteMs),
			r.Open, r.High, r.Low, r.Close, r.Volume, uint32(r.TradeCount),
			r.Ret1mLog, r.Ret5mLog, r.Ret15mLog, r.RangeBps1m,
			r.RV15m, r.RV60m, r.VolZ60m, r.AvgTradeSize1m, r.VWAPGapBps,
			r.TakerBuyQty1m, r.TakerSellQty1m, r.BuyRatio1m, r.CVD1m, r.CVD15m,
			r.MidPrice1s, r.SpreadBps1s, r.DepthBidNotional, r.DepthAskNotional,
			r.Imbalance, r.MicropriceGapBps, r.MarkSpotBps, r.OIDelta1m, uint32(r.LiqCount1m),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}
