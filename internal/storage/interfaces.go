package storage

import (
	"context"

	"backtest-lab/internal/domain"
)

// PriceSeriesStore provides access to price_series storage.
type PriceSeriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error)

	// ListSymbols returns all stored symbols in ascending order.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunStore provides access to optimization_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.OptimizationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.OptimizationRun, error)

	// ListBySymbol retrieves all runs for a symbol, most recent first.
	ListBySymbol(ctx context.Context, symbol string) ([]*domain.OptimizationRun, error)
}

// GridResultStore provides access to grid_evaluations storage.
type GridResultStore interface {
	// InsertBulk adds multiple evaluations. Fails entire batch on duplicate (run_id, index).
	InsertBulk(ctx context.Context, evals []*domain.GridEvaluation) error

	// GetByRunID retrieves all evaluations of a run, ordered by index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.GridEvaluation, error)
}
