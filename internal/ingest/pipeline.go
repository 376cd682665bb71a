// Package ingest turns decoded feed events into persisted raw records: the
// per-minute trade aggregator, the per-second depth snapshotter, and the
// direct persist handlers for kline, mark and liquidation payloads.
package ingest

import (
	"context"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/feed"
	"perp-feature-lab/internal/observability"
	"perp-feature-lab/internal/storage"
)

// Pipeline implements feed.Handler. Each handler runs synchronously on the
// feed read loop; a persistence failure drops that single record and never
// propagates to the transport.
type Pipeline struct {
	klines       storage.KlineStore
	marks        storage.MarkStore
	liquidations storage.LiquidationStore
	aggregator   *TradeAggregator
	snapshotter  *DepthSnapshotter
	logger       *logrus.Logger
	metrics      *observability.Metrics

	// ctx bounds storage calls made from feed callbacks.
	ctx context.Context
}

// PipelineOptions contains the collaborators for creating a Pipeline.
type PipelineOptions struct {
	Klines       storage.KlineStore
	Marks        storage.MarkStore
	Liquidations storage.LiquidationStore
	Aggregator   *TradeAggregator
	Snapshotter  *DepthSnapshotter
	Metrics      *observability.Metrics
	Logger       *logrus.Logger
}

// NewPipeline creates the persist pipeline. ctx bounds storage calls and
// should be the process lifetime context.
func NewPipeline(ctx context.Context, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		klines:       opts.Klines,
		marks:        opts.Marks,
		liquidations: opts.Liquidations,
		aggregator:   opts.Aggregator,
		snapshotter:  opts.Snapshotter,
		logger:       logger,
		metrics:      opts.Metrics,
		ctx:          ctx,
	}
}

// Compile-time interface check.
var _ feed.Handler = (*Pipeline)(nil)

// HandleKline persists a candle only once it is final; in-progress updates
// for the open minute are ignored.
func (p *Pipeline) HandleKline(e *feed.KlineEvent) {
	k := e.Kline
	if !k.IsFinal {
		return
	}

	row := domain.Kline{
		Symbol:              e.Symbol,
		OpenTimeMs:          k.StartTimeMs,
		Open:                feed.ParseFloat(k.Open),
		High:                feed.ParseFloat(k.High),
		Low:                 feed.ParseFloat(k.Low),
		Close:               feed.ParseFloat(k.Close),
		Volume:              feed.ParseFloat(k.Volume),
		TradeCount:          int(k.TradeCount),
		QuoteVolume:         feed.ParseFloatPtr(k.QuoteVolume),
		TakerBuyVolume:      feed.ParseFloatPtr(k.TakerBuyVolume),
		TakerBuyQuoteVolume: feed.ParseFloatPtr(k.TakerBuyQuoteVolume),
	}

	if err := p.klines.Upsert(p.ctx, &row); err != nil {
		p.metrics.PersistError("kline_1m")
		p.logger.Errorf("kline persist failed: symbol=%s minute=%d: %v", e.Symbol, k.StartTimeMs, err)
	}
}

// HandleMarkPrice persists one mark sample per second, keyed by the event
// time floored to the second.
func (p *Pipeline) HandleMarkPrice(e *feed.MarkPriceEvent) {
	row := domain.MarkPrice{
		Symbol:      e.Symbol,
		TsMs:        domain.FloorToSecond(e.EventTimeMs),
		MarkPrice:   feed.ParseFloat(e.MarkPrice),
		IndexPrice:  feed.ParseFloatPtr(e.IndexPrice),
		FundingRate: feed.ParseFloatPtr(e.FundingRate),
	}
	if e.NextFundingTime > 0 {
		next := e.NextFundingTime
		row.NextFundingMs = &next
	}

	if err := p.marks.Upsert(p.ctx, &row); err != nil {
		p.metrics.PersistError("mark_1s")
		p.logger.Errorf("mark persist failed: symbol=%s ts=%d: %v", e.Symbol, row.TsMs, err)
	}
}

// HandleForceOrder appends a liquidation event. Price preference: avg price
// when present and positive, else the order price.
func (p *Pipeline) HandleForceOrder(e *feed.ForceOrderEvent) {
	o := e.Order

	price := feed.ParseFloat(o.AvgPrice)
	if price <= 0 {
		price = feed.ParseFloat(o.Price)
	}

	row := domain.Liquidation{
		Symbol:      o.Symbol,
		EventTimeMs: e.EventTimeMs,
		Side:        o.Side,
		Price:       price,
		Qty:         feed.ParseFloat(o.OrigQty),
		Status:      o.OrderStatus,
	}

	if err := p.liquidations.Insert(p.ctx, &row); err != nil {
		p.metrics.PersistError("liquidations")
		p.logger.Errorf("liquidation persist failed: symbol=%s ts=%d: %v", o.Symbol, e.EventTimeMs, err)
	}
}

// HandleTrade feeds the minute aggregator. The trade's own timestamp T, not
// the event time E, keys the bucket.
func (p *Pipeline) HandleTrade(e *feed.AggTradeEvent) {
	p.aggregator.OnTrade(
		e.Symbol,
		e.TradeTimeMs,
		feed.ParseFloat(e.Price),
		feed.ParseFloat(e.Quantity),
		e.BuyerIsMaker,
	)
}

// HandleDepth overwrites the snapshotter's cache slot.
func (p *Pipeline) HandleDepth(d *domain.DepthUpdate) {
	p.snapshotter.Set(d)
}
