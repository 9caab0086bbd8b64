package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// GridResultStore is an in-memory implementation of storage.GridResultStore.
type GridResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.GridEvaluation // keyed by (run_id, index)
}

// NewGridResultStore creates a new in-memory grid result store.
func NewGridResultStore() *GridResultStore {
	return &GridResultStore{
		data: make(map[string]*domain.GridEvaluation),
	}
}

func evalKey(runID string, index int) string {
	return fmt.Sprintf("%s|%d", runID, index)
}

// InsertBulk adds multiple evaluations atomically. Fails entire batch on any duplicate.
func (s *GridResultStore) InsertBulk(_ context.Context, evals []*domain.GridEvaluation) error {
	if len(evals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(evals))
	for _, e := range evals {
		if e == nil || e.RunID == "" || e.Index < 0 {
			return storage.ErrInvalidInput
		}
		key := evalKey(e.RunID, e.Index)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range evals {
		evalCopy := *e
		evalCopy.Params = append([]float64(nil), e.Params...)
		s.data[evalKey(e.RunID, e.Index)] = &evalCopy
	}
	return nil
}

// GetByRunID retrieves all evaluations of a run, ordered by index ASC.
func (s *GridResultStore) GetByRunID(_ context.Context, runID string) ([]*domain.GridEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GridEvaluation
	for _, e := range s.data {
		if e.RunID == runID {
			evalCopy := *e
			evalCopy.Params = append([]float64(nil), e.Params...)
			result = append(result, &evalCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

var _ storage.GridResultStore = (*GridResultStore)(nil)
