package memory

import (
	"context"
	"sync"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// LiquidationStore is an in-memory implementation of storage.LiquidationStore.
type LiquidationStore struct {
	mu   sync.RWMutex
	data []*domain.Liquidation
}

// NewLiquidationStore creates a new in-memory liquidation store.
func NewLiquidationStore() *LiquidationStore {
	return &LiquidationStore{}
}

// Compile-time interface check.
var _ storage.LiquidationStore = (*LiquidationStore)(nil)

// Insert appends a liquidation event.
func (s *LiquidationStore) Insert(_ context.Context, l *domain.Liquidation) error {
	if l == nil || l.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *l
	s.data = append(s.data, &row)
	return nil
}

// CountRange counts events with event time in [from, to).
func (s *LiquidationStore) CountRange(_ context.Context, symbol string, from, to int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, l := range s.data {
		if l.Symbol == symbol && l.EventTimeMs >= from && l.EventTimeMs < to {
			count++
		}
	}
	return count, nil
}
