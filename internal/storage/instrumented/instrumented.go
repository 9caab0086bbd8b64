// Package instrumented wraps stores with query duration and error metrics.
package instrumented

import (
	"context"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// Compile-time interface checks
var (
	_ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
	_ storage.RunStore         = (*RunStore)(nil)
	_ storage.GridResultStore  = (*GridResultStore)(nil)
)

type recorder struct {
	database string
	metrics  *observability.Metrics
}

func (r recorder) observe(operation string, start time.Time, err error) {
	r.metrics.RecordDBQuery(r.database, operation, time.Since(start).Seconds(), err)
}

// PriceSeriesStore records metrics around a storage.PriceSeriesStore.
type PriceSeriesStore struct {
	next storage.PriceSeriesStore
	rec  recorder
}

// NewPriceSeriesStore wraps next. database labels the metrics.
func NewPriceSeriesStore(next storage.PriceSeriesStore, database string, m *observability.Metrics) *PriceSeriesStore {
	return &PriceSeriesStore{next: next, rec: recorder{database: database, metrics: m}}
}

func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	start := time.Now()
	err := s.next.InsertBulk(ctx, points)
	s.rec.observe("price_insert_bulk", start, err)
	return err
}

func (s *PriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	start := time.Now()
	points, err := s.next.GetBySymbol(ctx, symbol)
	s.rec.observe("price_get_by_symbol", start, err)
	return points, err
}

func (s *PriceSeriesStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error) {
	began := time.Now()
	points, err := s.next.GetByTimeRange(ctx, symbol, start, end)
	s.rec.observe("price_get_by_time_range", began, err)
	return points, err
}

func (s *PriceSeriesStore) ListSymbols(ctx context.Context) ([]string, error) {
	start := time.Now()
	symbols, err := s.next.ListSymbols(ctx)
	s.rec.observe("price_list_symbols", start, err)
	return symbols, err
}

// RunStore records metrics around a storage.RunStore.
type RunStore struct {
	next storage.RunStore
	rec  recorder
}

// NewRunStore wraps next.
func NewRunStore(next storage.RunStore, database string, m *observability.Metrics) *RunStore {
	return &RunStore{next: next, rec: recorder{database: database, metrics: m}}
}

func (s *RunStore) Insert(ctx context.Context, run *domain.OptimizationRun) error {
	start := time.Now()
	err := s.next.Insert(ctx, run)
	s.rec.observe("run_insert", start, err)
	return err
}

func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.OptimizationRun, error) {
	start := time.Now()
	run, err := s.next.GetByID(ctx, runID)
	s.rec.observe("run_get_by_id", start, err)
	return run, err
}

func (s *RunStore) ListBySymbol(ctx context.Context, symbol string) ([]*domain.OptimizationRun, error) {
	start := time.Now()
	runs, err := s.next.ListBySymbol(ctx, symbol)
	s.rec.observe("run_list_by_symbol", start, err)
	return runs, err
}

// GridResultStore records metrics around a storage.GridResultStore.
type GridResultStore struct {
	next storage.GridResultStore
	rec  recorder
}

// NewGridResultStore wraps next.
func NewGridResultStore(next storage.GridResultStore, database string, m *observability.Metrics) *GridResultStore {
	return &GridResultStore{next: next, rec: recorder{database: database, metrics: m}}
}

func (s *GridResultStore) InsertBulk(ctx context.Context, evals []*domain.GridEvaluation) error {
	start := time.Now()
	err := s.next.InsertBulk(ctx, evals)
	s.rec.observe("grid_insert_bulk", start, err)
	return err
}

func (s *GridResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.GridEvaluation, error) {
	start := time.Now()
	evals, err := s.next.GetByRunID(ctx, runID)
	s.rec.observe("grid_get_by_run_id", start, err)
	return evals, err
}
