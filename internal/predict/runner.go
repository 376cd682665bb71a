package predict

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// Runner forwards each symbol's just-completed feature row once per minute.
// A minute without a row, or a failed post, is logged and dropped; there is
// no retry or replay.
type Runner struct {
	predictor Predictor
	features  storage.FeatureStore
	symbols   []string
	logger    *logrus.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewRunner creates a forwarding runner.
func NewRunner(predictor Predictor, features storage.FeatureStore, symbols []string, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		predictor: predictor,
		features:  features,
		symbols:   symbols,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. Ticks lag the minute boundary enough
// for the feature engine to commit its row first.
func (r *Runner) Run(ctx context.Context) {
	for {
		wait := r.untilNextTick()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		target := domain.FloorToMinute(r.now().UnixMilli()) - domain.MinuteMs
		r.RunOnce(ctx, target)
	}
}

// RunOnce forwards the feature row at minuteMs for every symbol.
func (r *Runner) RunOnce(ctx context.Context, minuteMs int64) {
	for _, symbol := range r.symbols {
		row, err := r.features.GetAt(ctx, symbol, minuteMs)
		if errors.Is(err, storage.ErrNotFound) {
			r.logger.Debugf("no feature row to forward: symbol=%s minute=%d", symbol, minuteMs)
			continue
		}
		if err != nil {
			r.logger.Errorf("feature row read failed: symbol=%s minute=%d: %v", symbol, minuteMs, err)
			continue
		}

		p, err := r.predictor.Predict(ctx, row)
		if err != nil {
			r.logger.Errorf("prediction failed: symbol=%s minute=%d: %v", symbol, minuteMs, err)
			continue
		}
		r.logger.Infof("prediction: symbol=%s minute=%d signal=%s score=%.4f", symbol, minuteMs, p.Signal, p.Score)
	}
}

func (r *Runner) untilNextTick() time.Duration {
	now := r.now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	// 2s lag keeps this behind the feature engine's own 500ms lag.
	return next.Sub(now) + 2*time.Second
}
