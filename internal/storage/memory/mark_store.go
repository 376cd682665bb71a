package memory

import (
	"context"
	"fmt"
	"sync"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// MarkStore is an in-memory implementation of storage.MarkStore.
type MarkStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarkPrice // keyed by (symbol, ts_ms)
}

// NewMarkStore creates a new in-memory mark price store.
func NewMarkStore() *MarkStore {
	return &MarkStore{data: make(map[string]*domain.MarkPrice)}
}

// Compile-time interface check.
var _ storage.MarkStore = (*MarkStore)(nil)

func markKey(symbol string, tsMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, tsMs)
}

// Upsert inserts or overwrites the sample keyed by (symbol, ts_ms).
func (s *MarkStore) Upsert(_ context.Context, m *domain.MarkPrice) error {
	if m == nil || m.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *m
	s.data[markKey(m.Symbol, m.TsMs)] = &row
	return nil
}

// GetLatestBefore retrieves the most recent sample strictly before ts.
func (s *MarkStore) GetLatestBefore(_ context.Context, symbol string, ts int64) (*domain.MarkPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.MarkPrice
	for _, m := range s.data {
		if m.Symbol != symbol || m.TsMs >= ts {
			continue
		}
		if best == nil || m.TsMs > best.TsMs {
			best = m
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	row := *best
	return &row, nil
}
