package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// PriceSeriesStore is an in-memory implementation of storage.PriceSeriesStore.
type PriceSeriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (symbol, timestamp_ms)
}

// NewPriceSeriesStore creates a new in-memory price series store.
func NewPriceSeriesStore() *PriceSeriesStore {
	return &PriceSeriesStore{
		data: make(map[string]*domain.PricePoint),
	}
}

func priceKey(symbol string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestampMs)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PriceSeriesStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))

	// First pass: validate against existing data and the batch itself
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.Symbol, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[priceKey(p.Symbol, p.TimestampMs)] = &pointCopy
	}
	return nil
}

// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
func (s *PriceSeriesStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PricePoint, error) {
	return s.filter(func(p *domain.PricePoint) bool {
		return p.Symbol == symbol
	}), nil
}

// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
func (s *PriceSeriesStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error) {
	return s.filter(func(p *domain.PricePoint) bool {
		return p.Symbol == symbol && p.TimestampMs >= start && p.TimestampMs <= end
	}), nil
}

// ListSymbols returns all stored symbols in ascending order.
func (s *PriceSeriesStore) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.data {
		seen[p.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *PriceSeriesStore) filter(keep func(*domain.PricePoint) bool) []*domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if keep(p) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
