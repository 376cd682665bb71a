package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/feed"
	"perp-feature-lab/internal/observability"
	"perp-feature-lab/internal/storage"
)

// epsilon guards the zero-liquidity edge cases in the derived metrics.
const epsilon = 1e-12

// DefaultDepthTopN is the default aggregation window for the per-side
// notional sums.
const DefaultDepthTopN = 20

// depthSlot holds the single most-recent depth state for one symbol.
// Latest value wins; the update is replaced wholesale so readers never
// observe a partial write.
type depthSlot struct {
	latest         atomic.Pointer[domain.DepthUpdate]
	lastFlushedSec atomic.Int64 // floored epoch ms, 0 = never flushed
}

// DepthSnapshotter caches the latest order-book state per symbol and, on a
// fixed 1 Hz cadence, persists one derived-metric snapshot per elapsed
// second.
type DepthSnapshotter struct {
	store    storage.DepthStore
	topN     int
	interval time.Duration
	logger   *logrus.Logger
	metrics  *observability.Metrics

	mu    sync.RWMutex
	slots map[string]*depthSlot
}

// NewDepthSnapshotter creates a snapshotter writing to store. topN bounds
// the per-side notional aggregation window; 0 means DefaultDepthTopN.
func NewDepthSnapshotter(store storage.DepthStore, topN int, metrics *observability.Metrics, logger *logrus.Logger) *DepthSnapshotter {
	if topN <= 0 {
		topN = DefaultDepthTopN
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &DepthSnapshotter{
		store:    store,
		topN:     topN,
		interval: time.Second,
		logger:   logger,
		metrics:  metrics,
		slots:    make(map[string]*depthSlot),
	}
}

// Set unconditionally overwrites the cached slot for the update's symbol.
// No merging, no queue: the latest update always wins even if the previous
// one was never consumed.
func (s *DepthSnapshotter) Set(d *domain.DepthUpdate) {
	if d == nil || d.Symbol == "" {
		return
	}
	s.slot(d.Symbol).latest.Store(d)
}

func (s *DepthSnapshotter) slot(symbol string) *depthSlot {
	s.mu.RLock()
	sl, ok := s.slots[symbol]
	s.mu.RUnlock()
	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[symbol]; ok {
		return sl
	}
	sl = &depthSlot{}
	s.slots[symbol] = sl
	return sl
}

// Run drives the snapshot cadence until ctx is cancelled. A failed tick is
// logged and never stops the schedule.
func (s *DepthSnapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick flushes at most one snapshot per symbol for the second of its cached
// update. Idempotent: a second that was already flushed is skipped, so the
// tick firing more often than data arrives, or being delayed past several
// updates within one second, never produces duplicates.
func (s *DepthSnapshotter) Tick(ctx context.Context) {
	s.mu.RLock()
	slots := make(map[string]*depthSlot, len(s.slots))
	for sym, sl := range s.slots {
		slots[sym] = sl
	}
	s.mu.RUnlock()

	for symbol, sl := range slots {
		d := sl.latest.Load()
		if d == nil {
			continue
		}

		sec := domain.FloorToSecond(d.EventTimeMs)
		if sec <= sl.lastFlushedSec.Load() {
			continue
		}

		snap, err := deriveSnapshot(d, sec, s.topN)
		if err != nil {
			s.metrics.SnapshotError()
			s.logger.Errorf("depth snapshot error: symbol=%s: %v", symbol, err)
			continue
		}

		if err := s.store.Upsert(ctx, snap); err != nil {
			s.metrics.SnapshotError()
			s.logger.Errorf("depth snapshot persist failed: symbol=%s sec=%d: %v", symbol, sec, err)
			continue
		}

		sl.lastFlushedSec.Store(sec)
		s.metrics.SnapshotPersisted()
	}
}

// deriveSnapshot computes the microstructure metrics for one cached update.
func deriveSnapshot(d *domain.DepthUpdate, sec int64, topN int) (*domain.DepthSnapshot, error) {
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return nil, fmt.Errorf("one-sided book: bids=%d asks=%d", len(d.Bids), len(d.Asks))
	}

	bestBid := feed.ParseFloat(d.Bids[0].Price)
	bestAsk := feed.ParseFloat(d.Asks[0].Price)
	if bestBid <= 0 || bestAsk <= 0 {
		return nil, fmt.Errorf("invalid top of book: bid=%v ask=%v", bestBid, bestAsk)
	}

	mid := (bestBid + bestAsk) / 2
	spreadBps := (bestAsk - bestBid) / mid * 10_000

	bidNotional := sumNotional(d.Bids, topN)
	askNotional := sumNotional(d.Asks, topN)
	imbalance := (bidNotional - askNotional) / (bidNotional + askNotional + epsilon)

	bidQty0 := feed.ParseFloat(d.Bids[0].Qty)
	askQty0 := feed.ParseFloat(d.Asks[0].Qty)
	microprice := (bestAsk*bidQty0 + bestBid*askQty0) / (bidQty0 + askQty0 + epsilon)
	microGapBps := (microprice - mid) / mid * 10_000

	bidsGz, err := gzipLevels(d.Bids)
	if err != nil {
		return nil, err
	}
	asksGz, err := gzipLevels(d.Asks)
	if err != nil {
		return nil, err
	}

	return &domain.DepthSnapshot{
		Symbol:           d.Symbol,
		TsMs:             sec,
		BestBid:          bestBid,
		BestAsk:          bestAsk,
		MidPrice:         mid,
		SpreadBps:        spreadBps,
		BidNotional:      bidNotional,
		AskNotional:      askNotional,
		Imbalance:        imbalance,
		Microprice:       &microprice,
		MicropriceGapBps: &microGapBps,
		BidsGzip:         bidsGz,
		AsksGzip:         asksGz,
	}, nil
}

// sumNotional sums price*qty over the top-N levels of one side.
func sumNotional(levels []domain.DepthLevel, topN int) float64 {
	if len(levels) < topN {
		topN = len(levels)
	}
	sum := 0.0
	for _, lv := range levels[:topN] {
		sum += feed.ParseFloat(lv.Price) * feed.ParseFloat(lv.Qty)
	}
	return sum
}
