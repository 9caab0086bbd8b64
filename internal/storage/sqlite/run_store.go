package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

var runColumns = []string{
	"run_id", "grid_id", "symbol", "strategy_type", "cost_pct", "ranges", "best_params",
	"performance", "out_performance", "combinations", "trades", "started_at_ms", "finished_at_ms",
}

// RunStore implements storage.RunStore using SQLite.
type RunStore struct {
	db *DB
	sq squirrel.StatementBuilderType
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.OptimizationRun) error {
	if run == nil || run.RunID == "" || run.Symbol == "" {
		return storage.ErrInvalidInput
	}

	ranges, err := json.Marshal(run.Ranges)
	if err != nil {
		return fmt.Errorf("encode ranges: %w", err)
	}
	bestParams := run.BestParams
	if bestParams == nil {
		bestParams = []float64{}
	}
	params, err := json.Marshal(bestParams)
	if err != nil {
		return fmt.Errorf("encode best params: %w", err)
	}

	_, err = s.sq.
		Insert("optimization_runs").
		Columns(runColumns...).
		Values(
			run.RunID, run.GridID, run.Symbol, run.StrategyType, run.CostPct,
			string(ranges), string(params),
			run.Summary.Performance, run.Summary.OutPerformance,
			run.Combinations, run.Trades, run.StartedAtMs, run.FinishedAtMs,
		).
		RunWith(s.db.DB).
		ExecContext(ctx)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert optimization run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.OptimizationRun, error) {
	row := s.sq.
		Select(runColumns...).
		From("optimization_runs").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(s.db.DB).
		QueryRowContext(ctx)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get optimization run: %w", err)
	}
	return run, nil
}

// ListBySymbol retrieves all runs for a symbol, most recent first.
func (s *RunStore) ListBySymbol(ctx context.Context, symbol string) ([]*domain.OptimizationRun, error) {
	rows, err := s.sq.
		Select(runColumns...).
		From("optimization_runs").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("started_at_ms DESC", "run_id ASC").
		RunWith(s.db.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list optimization runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.OptimizationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan optimization run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimization runs: %w", err)
	}
	return runs, nil
}

func scanRun(row squirrel.RowScanner) (*domain.OptimizationRun, error) {
	var (
		run            domain.OptimizationRun
		ranges, params string
	)
	err := row.Scan(
		&run.RunID, &run.GridID, &run.Symbol, &run.StrategyType, &run.CostPct,
		&ranges, &params,
		&run.Summary.Performance, &run.Summary.OutPerformance,
		&run.Combinations, &run.Trades, &run.StartedAtMs, &run.FinishedAtMs,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ranges), &run.Ranges); err != nil {
		return nil, fmt.Errorf("decode ranges: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &run.BestParams); err != nil {
		return nil, fmt.Errorf("decode best params: %w", err)
	}
	return &run, nil
}
