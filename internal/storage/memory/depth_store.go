package memory

import (
	"context"
	"fmt"
	"sync"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// DepthStore is an in-memory implementation of storage.DepthStore.
type DepthStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DepthSnapshot // keyed by (symbol, ts_ms)
}

// NewDepthStore creates a new in-memory depth snapshot store.
func NewDepthStore() *DepthStore {
	return &DepthStore{data: make(map[string]*domain.DepthSnapshot)}
}

// Compile-time interface check.
var _ storage.DepthStore = (*DepthStore)(nil)

func depthKey(symbol string, tsMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, tsMs)
}

// Upsert inserts or overwrites the snapshot keyed by (symbol, ts_ms).
func (s *DepthStore) Upsert(_ context.Context, d *domain.DepthSnapshot) error {
	if d == nil || d.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *d
	s.data[depthKey(d.Symbol, d.TsMs)] = &row
	return nil
}

// GetLatestBefore retrieves the most recent snapshot strictly before ts.
func (s *DepthStore) GetLatestBefore(_ context.Context, symbol string, ts int64) (*domain.DepthSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.DepthSnapshot
	for _, d := range s.data {
		if d.Symbol != symbol || d.TsMs >= ts {
			continue
		}
		if best == nil || d.TsMs > best.TsMs {
			best = d
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	row := *best
	return &row, nil
}

// Count returns the number of stored snapshots. Test helper.
func (s *DepthStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
