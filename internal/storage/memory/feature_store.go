package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FeatureRow // keyed by (symbol, minute_ms)
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{data: make(map[string]*domain.FeatureRow)}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

func featureKey(symbol string, minuteMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, minuteMs)
}

// Upsert inserts or overwrites the row keyed by (symbol, minute_ms).
func (s *FeatureStore) Upsert(_ context.Context, r *domain.FeatureRow) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *r
	s.data[featureKey(r.Symbol, r.MinuteMs)] = &row
	return nil
}

// GetAt retrieves the row at exactly minuteMs.
func (s *FeatureStore) GetAt(_ context.Context, symbol string, minuteMs int64) (*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[featureKey(symbol, minuteMs)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	row := *r
	return &row, nil
}

// GetRange retrieves rows within [from, to), ordered by minute ASC.
func (s *FeatureStore) GetRange(_ context.Context, symbol string, from, to int64) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for _, r := range s.data {
		if r.Symbol == symbol && r.MinuteMs >= from && r.MinuteMs < to {
			row := *r
			result = append(result, &row)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].MinuteMs < result[j].MinuteMs
	})

	return result, nil
}

// Count returns the number of stored rows. Test helper.
func (s *FeatureStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
