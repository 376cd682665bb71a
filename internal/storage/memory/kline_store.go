// Package memory provides in-memory storage implementations, used by tests
// and by --use-memory runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage"
)

// KlineStore is an in-memory implementation of storage.KlineStore.
type KlineStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Kline // keyed by (symbol, open_time_ms)
}

// NewKlineStore creates a new in-memory kline store.
func NewKlineStore() *KlineStore {
	return &KlineStore{data: make(map[string]*domain.Kline)}
}

// Compile-time interface check.
var _ storage.KlineStore = (*KlineStore)(nil)

func klineKey(symbol string, openTimeMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, openTimeMs)
}

// Upsert inserts or overwrites the candle keyed by (symbol, open_time_ms).
func (s *KlineStore) Upsert(_ context.Context, k *domain.Kline) error {
	if k == nil || k.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *k
	s.data[klineKey(k.Symbol, k.OpenTimeMs)] = &row
	return nil
}

// GetAt retrieves the candle at exactly openTimeMs.
func (s *KlineStore) GetAt(_ context.Context, symbol string, openTimeMs int64) (*domain.Kline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.data[klineKey(symbol, openTimeMs)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	row := *k
	return &row, nil
}

// GetRange retrieves candles within [from, to), ordered by open time ASC.
func (s *KlineStore) GetRange(_ context.Context, symbol string, from, to int64) ([]*domain.Kline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Kline
	for _, k := range s.data {
		if k.Symbol == symbol && k.OpenTimeMs >= from && k.OpenTimeMs < to {
			row := *k
			result = append(result, &row)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTimeMs < result[j].OpenTimeMs
	})

	return result, nil
}
