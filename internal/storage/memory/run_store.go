package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptimizationRun // keyed by run_id
}

// NewRunStore creates a new in-memory optimization run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.OptimizationRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, run *domain.OptimizationRun) error {
	if run == nil || run.RunID == "" || run.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.OptimizationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// ListBySymbol retrieves all runs for a symbol, most recent first.
func (s *RunStore) ListBySymbol(_ context.Context, symbol string) ([]*domain.OptimizationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptimizationRun
	for _, run := range s.data {
		if run.Symbol == symbol {
			result = append(result, copyRun(run))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAtMs != result[j].StartedAtMs {
			return result[i].StartedAtMs > result[j].StartedAtMs
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// copyRun deep-copies slices so callers cannot mutate stored runs.
func copyRun(run *domain.OptimizationRun) *domain.OptimizationRun {
	c := *run
	c.Ranges = append([]domain.ParamRange(nil), run.Ranges...)
	c.BestParams = append([]float64(nil), run.BestParams...)
	return &c
}

var _ storage.RunStore = (*RunStore)(nil)
