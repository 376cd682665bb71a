package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/feed"
	"perp-feature-lab/internal/observability"
)

// Restartable is the slice of the feed client the supervisor needs.
type Restartable interface {
	Restart()
}

// Supervisor runs the two periodic watchdog duties: flushing expired trade
// buckets and forcing a feed reconnect when the stream goes stale.
type Supervisor struct {
	aggregator *TradeAggregator
	client     Restartable
	health     *feed.Health
	symbols    []string
	logger     *logrus.Logger
	metrics    *observability.Metrics

	flushInterval      time.Duration
	checkInterval      time.Duration
	stalenessThreshold time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// SupervisorOptions contains configuration for creating a Supervisor.
type SupervisorOptions struct {
	Aggregator *TradeAggregator
	Client     Restartable
	Health     *feed.Health
	Symbols    []string
	Metrics    *observability.Metrics
	Logger     *logrus.Logger

	FlushInterval      time.Duration // default 10s
	CheckInterval      time.Duration // default 15s
	StalenessThreshold time.Duration // default 30s
}

// NewSupervisor creates a supervisor with defaults applied.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}
	checkInterval := opts.CheckInterval
	if checkInterval == 0 {
		checkInterval = 15 * time.Second
	}
	staleness := opts.StalenessThreshold
	if staleness == 0 {
		staleness = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Supervisor{
		aggregator:         opts.Aggregator,
		client:             opts.Client,
		health:             opts.Health,
		symbols:            opts.Symbols,
		logger:             logger,
		metrics:            opts.Metrics,
		flushInterval:      flushInterval,
		checkInterval:      checkInterval,
		stalenessThreshold: staleness,
		now:                time.Now,
	}
}

// Run drives both duties until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	flushTicker := time.NewTicker(s.flushInterval)
	defer flushTicker.Stop()

	checkTicker := time.NewTicker(s.checkInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flushTicker.C:
			for _, symbol := range s.symbols {
				s.aggregator.FlushExpired(ctx, symbol)
			}
		case <-checkTicker.C:
			s.checkStaleness()
		}
	}
}

// checkStaleness restarts the feed connection when no message has arrived
// within the staleness threshold. A feed that has never delivered a message
// is left alone; it is still connecting.
func (s *Supervisor) checkStaleness() {
	last := s.health.LastMessageMs()
	if last == 0 {
		return
	}

	age := time.Duration(s.now().UnixMilli()-last) * time.Millisecond
	s.metrics.SetLastMessageAge(age.Seconds())

	if age <= s.stalenessThreshold {
		return
	}

	msg := fmt.Sprintf("feed stale for %v (threshold %v), restarting", age.Truncate(time.Second), s.stalenessThreshold)
	s.logger.Warn(msg)
	s.health.SetError(msg)
	s.client.Restart()
}
