package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
)

// FeatureSink is a secondary, write-only destination for feature rows.
type FeatureSink interface {
	Insert(ctx context.Context, r *domain.FeatureRow) error
}

// FanoutFeatureStore writes every upsert to a primary FeatureStore and
// mirrors it into an analytics sink. The primary is authoritative: reads go
// there only, and a sink failure is logged without failing the upsert.
type FanoutFeatureStore struct {
	primary FeatureStore
	sink    FeatureSink
	logger  *logrus.Logger
}

// NewFanoutFeatureStore creates a fan-out store.
func NewFanoutFeatureStore(primary FeatureStore, sink FeatureSink, logger *logrus.Logger) *FanoutFeatureStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &FanoutFeatureStore{primary: primary, sink: sink, logger: logger}
}

// Compile-time interface check.
var _ FeatureStore = (*FanoutFeatureStore)(nil)

// Upsert writes to the primary store, then best-effort to the sink.
func (s *FanoutFeatureStore) Upsert(ctx context.Context, r *domain.FeatureRow) error {
	if err := s.primary.Upsert(ctx, r); err != nil {
		return err
	}

	if err := s.sink.Insert(ctx, r); err != nil {
		s.logger.Errorf("feature sink write failed: symbol=%s minute=%d: %v", r.Symbol, r.MinuteMs, err)
	}
	return nil
}

// GetAt reads from the primary store.
func (s *FanoutFeatureStore) GetAt(ctx context.Context, symbol string, minuteMs int64) (*domain.FeatureRow, error) {
	return s.primary.GetAt(ctx, symbol, minuteMs)
}

// GetRange reads from the primary store.
func (s *FanoutFeatureStore) GetRange(ctx context.Context, symbol string, from, to int64) ([]*domain.FeatureRow, error) {
	return s.primary.GetRange(ctx, symbol, from, to)
}
