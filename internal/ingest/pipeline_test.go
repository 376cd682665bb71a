package ingest

import (
	"context"
	"errors"
	"testing"

	"perp-feature-lab/internal/feed"
	"perp-feature-lab/internal/storage"
	"perp-feature-lab/internal/storage/memory"
)

func newTestPipeline() (*Pipeline, *memory.KlineStore, *memory.MarkStore, *memory.LiquidationStore, *memory.TradeFlowStore) {
	klines := memory.NewKlineStore()
	marks := memory.NewMarkStore()
	liqs := memory.NewLiquidationStore()
	flows := memory.NewTradeFlowStore()

	p := NewPipeline(context.Background(), PipelineOptions{
		Klines:       klines,
		Marks:        marks,
		Liquidations: liqs,
		Aggregator:   NewTradeAggregator(flows, nil, nil),
		Snapshotter:  NewDepthSnapshotter(memory.NewDepthStore(), 20, nil, nil),
	})
	return p, klines, marks, liqs, flows
}

func TestHandleKline_OnlyFinalCandlesPersist(t *testing.T) {
	p, klines, _, _, _ := newTestPipeline()
	ctx := context.Background()

	e := &feed.KlineEvent{
		EventType: feed.EventTypeKline,
		Symbol:    "BTCUSDT",
		Kline: feed.KlinePayload{
			StartTimeMs: 1_700_000_040_000,
			Open:        "100", High: "103", Low: "99", Close: "102",
			Volume: "10", TradeCount: 42,
			QuoteVolume: "1020", IsFinal: false,
		},
	}

	p.HandleKline(e)
	if _, err := klines.GetAt(ctx, "BTCUSDT", 1_700_000_040_000); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected in-progress candle dropped, got err=%v", err)
	}

	e.Kline.IsFinal = true
	p.HandleKline(e)

	got, err := klines.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	if err != nil {
		t.Fatalf("read candle: %v", err)
	}
	if got.Close != 102 || got.TradeCount != 42 {
		t.Errorf("unexpected candle: %+v", got)
	}
	if got.QuoteVolume == nil || *got.QuoteVolume != 1020 {
		t.Errorf("expected quote volume 1020, got %v", got.QuoteVolume)
	}
}

func TestHandleMarkPrice_FlooredSecondAndFundingSentinel(t *testing.T) {
	p, _, marks, _, _ := newTestPipeline()
	ctx := context.Background()

	p.HandleMarkPrice(&feed.MarkPriceEvent{
		EventType:   feed.EventTypeMarkPrice,
		EventTimeMs: 1_700_000_040_789,
		Symbol:      "BTCUSDT",
		MarkPrice:   "100.5",
		FundingRate: "0.0001",
		// NextFundingTime 0: no next funding scheduled.
	})

	got, err := marks.GetLatestBefore(ctx, "BTCUSDT", 1_700_000_041_000)
	if err != nil {
		t.Fatalf("read mark: %v", err)
	}
	if got.TsMs != 1_700_000_040_000 {
		t.Errorf("expected ts floored to second, got %d", got.TsMs)
	}
	if got.NextFundingMs != nil {
		t.Errorf("expected nil next funding for sentinel 0, got %v", *got.NextFundingMs)
	}
	if got.FundingRate == nil || *got.FundingRate != 0.0001 {
		t.Errorf("expected funding rate 0.0001, got %v", got.FundingRate)
	}
}

func TestHandleForceOrder_PrefersAvgPrice(t *testing.T) {
	p, _, _, liqs, _ := newTestPipeline()
	ctx := context.Background()

	e := &feed.ForceOrderEvent{
		EventType:   feed.EventTypeForceOrder,
		EventTimeMs: 1_700_000_040_000,
		Order: feed.ForceOrder{
			Symbol:      "BTCUSDT",
			Side:        "SELL",
			OrigQty:     "0.5",
			Price:       "99.0",
			AvgPrice:    "99.5",
			OrderStatus: "FILLED",
		},
	}
	p.HandleForceOrder(e)

	// Zero avg price falls back to the order price.
	e.Order.AvgPrice = "0"
	e.EventTimeMs = 1_700_000_041_000
	p.HandleForceOrder(e)

	count, err := liqs.CountRange(ctx, "BTCUSDT", 1_700_000_040_000, 1_700_000_042_000)
	if err != nil {
		t.Fatalf("count liquidations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 liquidations, got %d", count)
	}
}

func TestHandleTrade_BucketsByTradeTime(t *testing.T) {
	p, _, _, _, flows := newTestPipeline()
	ctx := context.Background()

	// Event time is one minute later than the trade time; the trade's own
	// timestamp picks the bucket.
	p.HandleTrade(&feed.AggTradeEvent{
		EventType:    feed.EventTypeAggTrade,
		EventTimeMs:  1_700_000_100_000,
		Symbol:       "BTCUSDT",
		Price:        "100",
		Quantity:     "2",
		TradeTimeMs:  1_700_000_040_500,
		BuyerIsMaker: false,
	})

	p.aggregator.FlushAll(ctx)

	got, err := flows.GetAt(ctx, "BTCUSDT", 1_700_000_040_000)
	if err != nil {
		t.Fatalf("expected bucket keyed by trade time: %v", err)
	}
	if got.TakerBuyQty != 2 {
		t.Errorf("expected taker buy qty 2, got %v", got.TakerBuyQty)
	}
}
