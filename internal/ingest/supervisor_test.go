package ingest

import (
	"testing"
	"time"

	"perp-feature-lab/internal/feed"
)

type restartRecorder struct {
	calls int
}

func (r *restartRecorder) Restart() { r.calls++ }

func TestCheckStaleness_NoMessagesYetLeavesFeedAlone(t *testing.T) {
	rec := &restartRecorder{}
	s := NewSupervisor(SupervisorOptions{
		Client: rec,
		Health: feed.NewHealth(),
	})

	s.checkStaleness()

	if rec.calls != 0 {
		t.Errorf("expected no restart before first message, got %d", rec.calls)
	}
}

func TestCheckStaleness_FreshFeedNotRestarted(t *testing.T) {
	health := feed.NewHealth()
	now := time.UnixMilli(1_700_000_040_000)
	health.RecordMessage(feed.EventTypeAggTrade, now)

	rec := &restartRecorder{}
	s := NewSupervisor(SupervisorOptions{Client: rec, Health: health})
	s.now = func() time.Time { return now.Add(10 * time.Second) }

	s.checkStaleness()

	if rec.calls != 0 {
		t.Errorf("expected no restart within threshold, got %d", rec.calls)
	}
}

func TestCheckStaleness_StaleFeedRestartedAndErrorRecorded(t *testing.T) {
	health := feed.NewHealth()
	now := time.UnixMilli(1_700_000_040_000)
	health.RecordMessage(feed.EventTypeAggTrade, now)

	rec := &restartRecorder{}
	s := NewSupervisor(SupervisorOptions{Client: rec, Health: health})
	s.now = func() time.Time { return now.Add(31 * time.Second) }

	s.checkStaleness()

	if rec.calls != 1 {
		t.Fatalf("expected exactly one restart, got %d", rec.calls)
	}
	if health.Snapshot().LastError == "" {
		t.Error("expected error state recorded before restart")
	}
}
