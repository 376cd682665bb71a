// Package feature computes the per-minute feature vector from the raw
// tables: candles, trade-flow aggregates, depth snapshots, mark prices and
// liquidations. The engine reads already-committed storage only; it shares no
// in-memory state with the ingestion path.
package feature

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/observability"
	"perp-feature-lab/internal/storage"
)

// Engine computes and persists one feature row per (symbol, minute).
type Engine struct {
	klines       storage.KlineStore
	flows        storage.TradeFlowStore
	depths       storage.DepthStore
	marks        storage.MarkStore
	liquidations storage.LiquidationStore
	features     storage.FeatureStore
	logger       *logrus.Logger
	metrics      *observability.Metrics
}

// EngineOptions contains the stores for creating an Engine.
type EngineOptions struct {
	Klines       storage.KlineStore
	TradeFlows   storage.TradeFlowStore
	Depths       storage.DepthStore
	Marks        storage.MarkStore
	Liquidations storage.LiquidationStore
	Features     storage.FeatureStore
	Metrics      *observability.Metrics
	Logger       *logrus.Logger
}

// NewEngine creates a feature engine reading the raw stores and writing
// feature rows.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		klines:       opts.Klines,
		flows:        opts.TradeFlows,
		depths:       opts.Depths,
		marks:        opts.Marks,
		liquidations: opts.Liquidations,
		features:     opts.Features,
		logger:       logger,
		metrics:      opts.Metrics,
	}
}

// CalculateFeatureMinute computes and upserts the feature row for the minute
// starting at minuteMs. When the minute's own candle is absent the minute is
// skipped and never retried; there is no backfill path. Recomputation for an
// existing minute overwrites the previous row.
func (e *Engine) CalculateFeatureMinute(ctx context.Context, symbol string, minuteMs int64) error {
	minuteEnd := minuteMs + domain.MinuteMs

	cur, err := e.klines.GetAt(ctx, symbol, minuteMs)
	if errors.Is(err, storage.ErrNotFound) {
		e.metrics.FeatureSkipped("missing_kline")
		e.logger.Warnf("feature minute skipped, no candle: symbol=%s minute=%d", symbol, minuteMs)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load candle: %w", err)
	}

	// One range read covers every lookback window below.
	history, err := e.klines.GetRange(ctx, symbol, minuteMs-60*domain.MinuteMs, minuteEnd)
	if err != nil {
		return fmt.Errorf("load candle range: %w", err)
	}
	byMinute := make(map[int64]*domain.Kline, len(history))
	for _, k := range history {
		byMinute[k.OpenTimeMs] = k
	}

	row := domain.FeatureRow{
		Symbol:     symbol,
		MinuteMs:   minuteMs,
		Open:       cur.Open,
		High:       cur.High,
		Low:        cur.Low,
		Close:      cur.Close,
		Volume:     cur.Volume,
		TradeCount: cur.TradeCount,
	}

	row.Ret1mLog = logReturn(cur.Close, closeAt(byMinute, minuteMs-1*domain.MinuteMs))
	row.Ret5mLog = logReturn(cur.Close, closeAt(byMinute, minuteMs-5*domain.MinuteMs))
	row.Ret15mLog = logReturn(cur.Close, closeAt(byMinute, minuteMs-15*domain.MinuteMs))

	if cur.Close > 0 {
		row.RangeBps1m = (cur.High - cur.Low) / cur.Close * 10_000
	}

	row.RV15m = realizedVol(byMinute, minuteMs, 15)
	row.RV60m = realizedVol(byMinute, minuteMs, 60)
	row.VolZ60m = volumeZ60(byMinute, minuteMs, cur.Volume)

	if cur.TradeCount > 0 {
		row.AvgTradeSize1m = cur.Volume / float64(cur.TradeCount)
	}

	if err := e.applyTradeFlow(ctx, &row, cur.Close, minuteEnd); err != nil {
		return err
	}
	if err := e.applyOrderBook(ctx, &row, minuteEnd); err != nil {
		return err
	}
	if err := e.applyMark(ctx, &row, cur.Close, minuteEnd); err != nil {
		return err
	}

	liqCount, err := e.liquidations.CountRange(ctx, symbol, minuteMs, minuteEnd)
	if err != nil {
		return fmt.Errorf("count liquidations: %w", err)
	}
	row.LiqCount1m = liqCount

	// No open-interest series is ingested; the delta stays a constant zero.
	row.OIDelta1m = 0

	sanitize(&row)

	if err := e.features.Upsert(ctx, &row); err != nil {
		return fmt.Errorf("upsert feature row: %w", err)
	}

	e.metrics.FeatureComputed()
	return nil
}

// applyTradeFlow fills the order-flow block: the minute's own aggregate plus
// the partial-tolerant 15-minute CVD window. A missing aggregate for the
// minute leaves its fields at zero.
func (e *Engine) applyTradeFlow(ctx context.Context, row *domain.FeatureRow, closeNow float64, minuteEnd int64) error {
	flow, err := e.flows.GetAt(ctx, row.Symbol, row.MinuteMs)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// Quiet minute, no trades.
	case err != nil:
		return fmt.Errorf("load trade flow: %w", err)
	default:
		row.TakerBuyQty1m = flow.TakerBuyQty
		row.TakerSellQty1m = flow.TakerSellQty
		row.CVD1m = flow.TakerBuyQty - flow.TakerSellQty
		if total := flow.TakerBuyQty + flow.TakerSellQty; total > 0 {
			row.BuyRatio1m = flow.TakerBuyQty / total
		}
		if flow.VWAP != nil && *flow.VWAP > 0 {
			row.VWAPGapBps = (closeNow - *flow.VWAP) / *flow.VWAP * 10_000
		}
	}

	// Missing minutes contribute zero; the window is not all-or-nothing.
	window, err := e.flows.GetRange(ctx, row.Symbol, row.MinuteMs-14*domain.MinuteMs, minuteEnd)
	if err != nil {
		return fmt.Errorf("load trade flow range: %w", err)
	}
	for _, f := range window {
		row.CVD15m += f.TakerBuyQty - f.TakerSellQty
	}
	return nil
}

// applyOrderBook fills the microstructure block from the latest depth
// snapshot strictly before minuteEnd. Without a snapshot every field stays
// zero.
func (e *Engine) applyOrderBook(ctx context.Context, row *domain.FeatureRow, minuteEnd int64) error {
	snap, err := e.depths.GetLatestBefore(ctx, row.Symbol, minuteEnd)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load depth snapshot: %w", err)
	}

	row.MidPrice1s = snap.MidPrice
	row.SpreadBps1s = snap.SpreadBps
	row.DepthBidNotional = snap.BidNotional
	row.DepthAskNotional = snap.AskNotional
	row.Imbalance = snap.Imbalance
	if snap.MicropriceGapBps != nil {
		row.MicropriceGapBps = *snap.MicropriceGapBps
	}
	return nil
}

// applyMark fills the mark-spot basis from the latest mark sample strictly
// before minuteEnd.
func (e *Engine) applyMark(ctx context.Context, row *domain.FeatureRow, closeNow float64, minuteEnd int64) error {
	mark, err := e.marks.GetLatestBefore(ctx, row.Symbol, minuteEnd)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load mark price: %w", err)
	}

	if mark.MarkPrice > 0 && closeNow > 0 {
		row.MarkSpotBps = (mark.MarkPrice - closeNow) / closeNow * 10_000
	}
	return nil
}
