package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, grid_id, symbol, strategy_type, cost_pct, ranges, best_params,
	performance, out_performance, combinations, trades, started_at_ms, finished_at_ms`

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

	query := `INSERT INTO optimization_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.pool.Exec(ctx, query,
		run.RunID, run.GridID, run.Symbol, run.StrategyType, run.CostPct,
		ranges, bestParams,
		run.Summary.Performance, run.Summary.OutPerformance,
		run.Combinations, run.Trades, run.StartedAtMs, run.FinishedAtMs,
	)
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
	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get optimization run: %w", err)
	}
	return run, nil
}

// ListBySymbol retrieves all runs for a symbol, most recent first.
func (s *RunStore) ListBySymbol(ctx context.Context, symbol string) ([]*domain.OptimizationRun, error) {
	query := `SELECT ` + runColumns + `
		FROM optimization_runs
		WHERE symbol = $1
		ORDER BY started_at_ms DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, symbol)
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

func scanRun(row pgx.Row) (*domain.OptimizationRun, error) {
	var (
		run    domain.OptimizationRun
		ranges []byte
	)
	err := row.Scan(
		&run.RunID, &run.GridID, &run.Symbol, &run.StrategyType, &run.CostPct,
		&ranges, &run.BestParams,
		&run.Summary.Performance, &run.Summary.OutPerformance,
		&run.Combinations, &run.Trades, &run.StartedAtMs, &run.FinishedAtMs,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ranges, &run.Ranges); err != nil {
		return nil, fmt.Errorf("decode ranges: %w", err)
	}
	return &run, nil
}
