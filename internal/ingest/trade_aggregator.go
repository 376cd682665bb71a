package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/observability"
	"perp-feature-lab/internal/storage"
)

// bucketKey identifies one live minute bucket.
type bucketKey struct {
	symbol   string
	minuteMs int64
}

// bucket accumulates taker flow for one (symbol, minute). Guarded by its own
// mutex: the feed callback increments while the flush task reads and clears.
type bucket struct {
	mu sync.Mutex

	takerBuyQty  float64
	takerSellQty float64
	tradeCount   int
	notionalSum  float64 // Σ price*qty
	volumeSum    float64 // Σ qty
}

// TradeAggregator maintains one mutable accumulator bucket per
// (symbol, minute) and flushes completed buckets to storage. Exactly one
// live bucket exists per key while its minute is open or unflushed; flushed
// buckets are removed so memory stays bounded.
type TradeAggregator struct {
	store   storage.TradeFlowStore
	logger  *logrus.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	buckets map[bucketKey]*bucket

	// now is injectable for tests.
	now func() time.Time
}

// NewTradeAggregator creates a trade aggregator writing to store.
func NewTradeAggregator(store storage.TradeFlowStore, metrics *observability.Metrics, logger *logrus.Logger) *TradeAggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &TradeAggregator{
		store:   store,
		logger:  logger,
		metrics: metrics,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// OnTrade accumulates one trade into its minute bucket. buyerIsMaker=true
// means the seller was the aggressor, so the taker side is SELL.
func (a *TradeAggregator) OnTrade(symbol string, tradeTimeMs int64, price, qty float64, buyerIsMaker bool) {
	key := bucketKey{symbol: symbol, minuteMs: domain.FloorToMinute(tradeTimeMs)}

	a.mu.Lock()
	b, ok := a.buckets[key]
	if !ok {
		b = &bucket{}
		a.buckets[key] = b
	}
	a.mu.Unlock()

	b.mu.Lock()
	if buyerIsMaker {
		b.takerSellQty += qty
	} else {
		b.takerBuyQty += qty
	}
	b.tradeCount++
	b.notionalSum += price * qty
	b.volumeSum += qty
	b.mu.Unlock()
}

// FlushExpired persists and removes every bucket strictly earlier than the
// current wall-clock minute. The bucket for the current minute is never
// touched. A persistence failure drops that bucket's record; there is no
// retry queue.
func (a *TradeAggregator) FlushExpired(ctx context.Context, symbol string) {
	curMinute := domain.FloorToMinute(a.now().UnixMilli())

	for _, key := range a.expiredKeys(symbol, curMinute) {
		a.flushBucket(ctx, key)
	}
}

// FlushAll persists and removes every live bucket unconditionally, including
// the still-open current minute. Called on shutdown so no accumulated volume
// is silently discarded.
func (a *TradeAggregator) FlushAll(ctx context.Context) {
	a.mu.Lock()
	keys := make([]bucketKey, 0, len(a.buckets))
	for key := range a.buckets {
		keys = append(keys, key)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.flushBucket(ctx, key)
	}
}

// expiredKeys collects bucket keys for symbol strictly before curMinute.
func (a *TradeAggregator) expiredKeys(symbol string, curMinute int64) []bucketKey {
	a.mu.Lock()
	defer a.mu.Unlock()

	var keys []bucketKey
	for key := range a.buckets {
		if key.symbol == symbol && key.minuteMs < curMinute {
			keys = append(keys, key)
		}
	}
	return keys
}

// flushBucket reads one bucket under its exclusion, upserts the aggregate
// row and removes the bucket.
func (a *TradeAggregator) flushBucket(ctx context.Context, key bucketKey) {
	a.mu.Lock()
	b, ok := a.buckets[key]
	a.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	row := domain.TradeFlow{
		Symbol:       key.symbol,
		MinuteMs:     key.minuteMs,
		TakerBuyQty:  b.takerBuyQty,
		TakerSellQty: b.takerSellQty,
		TradeCount:   b.tradeCount,
	}
	if b.volumeSum > 0 {
		vwap := b.notionalSum / b.volumeSum
		row.VWAP = &vwap
	}
	b.mu.Unlock()

	if err := a.store.Upsert(ctx, &row); err != nil {
		a.metrics.PersistError("trade_flow_1m")
		a.logger.Errorf("trade flush failed: symbol=%s minute=%d: %v", key.symbol, key.minuteMs, err)
	} else {
		a.metrics.BucketFlushed()
	}

	a.mu.Lock()
	delete(a.buckets, key)
	a.mu.Unlock()
}

// liveBuckets returns the number of live buckets. Test helper.
func (a *TradeAggregator) liveBuckets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}
