package feature

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
)

// Runner drives the engine on a UTC minute-aligned schedule. Each tick
// computes the minute that just closed. An error for one (symbol, minute)
// is logged and the schedule continues; the minute is not retried.
type Runner struct {
	engine  *Engine
	symbols []string
	logger  *logrus.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewRunner creates a runner computing features for symbols.
func NewRunner(engine *Engine, symbols []string, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		engine:  engine,
		symbols: symbols,
		logger:  logger,
		now:     time.Now,
	}
}

// Run blocks until ctx is cancelled, firing once per minute boundary.
func (r *Runner) Run(ctx context.Context) {
	for {
		wait := r.untilNextMinute()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// The minute that just ended.
		target := domain.FloorToMinute(r.now().UnixMilli()) - domain.MinuteMs
		r.RunOnce(ctx, target)
	}
}

// RunOnce computes the feature row for every symbol at minuteMs.
func (r *Runner) RunOnce(ctx context.Context, minuteMs int64) {
	for _, symbol := range r.symbols {
		if err := r.engine.CalculateFeatureMinute(ctx, symbol, minuteMs); err != nil {
			r.engine.metrics.FeatureSkipped("error")
			r.logger.Errorf("feature compute failed: symbol=%s minute=%d: %v", symbol, minuteMs, err)
		}
	}
}

// untilNextMinute is the duration to the next UTC minute boundary, padded by
// a moment so the closing candle has a chance to land first.
func (r *Runner) untilNextMinute() time.Duration {
	now := r.now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now) + 500*time.Millisecond
}
