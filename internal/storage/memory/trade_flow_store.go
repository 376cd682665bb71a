package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// TradeFlowStore is an in-memory implementation of storage.TradeFlowStore.
type TradeFlowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeFlow // keyed by (symbol, minute_ms)
}

// NewTradeFlowStore creates a new in-memory trade flow store.
func NewTradeFlowStore() *TradeFlowStore {
	return &TradeFlowStore{data: make(map[string]*domain.TradeFlow)}
}

// Compile-time interface check.
var _ storage.TradeFlowStore = (*TradeFlowStore)(nil)

func tradeFlowKey(symbol string, minuteMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, minuteMs)
}

// Upsert inserts or overwrites the aggregate keyed by (symbol, minute_ms).
func (s *TradeFlowStore) Upsert(_ context.Context, f *domain.TradeFlow) error {
	if f == nil || f.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *f
	s.data[tradeFlowKey(f.Symbol, f.MinuteMs)] = &row
	return nil
}

// GetAt retrieves the aggregate at exactly minuteMs.
func (s *TradeFlowStore) GetAt(_ context.Context, symbol string, minuteMs int64) (*domain.TradeFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.data[tradeFlowKey(symbol, minuteMs)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	row := *f
	return &row, nil
}

// GetRange retrieves aggregates within [from, to), ordered by minute ASC.
func (s *TradeFlowStore) GetRange(_ context.Context, symbol string, from, to int64) ([]*domain.TradeFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFlow
	for _, f := range s.data {
		if f.Symbol == symbol && f.MinuteMs >= from && f.MinuteMs < to {
			row := *f
			result = append(result, &row)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].MinuteMs < result[j].MinuteMs
	})

	return result, nil
}
