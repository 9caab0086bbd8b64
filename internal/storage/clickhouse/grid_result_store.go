package clickhouse

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// GridResultStore implements storage.GridResultStore using ClickHouse.
type GridResultStore struct {
	conn *Conn
}

// NewGridResultStore creates a new GridResultStore.
func NewGridResultStore(conn *Conn) *GridResultStore {
	return &GridResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.GridResultStore = (*GridResultStore)(nil)

// InsertBulk adds all evaluations of a grid in one batch.
// Fails entire batch on duplicate (run_id, idx).
func (s *GridResultStore) InsertBulk(ctx context.Context, evals []*domain.GridEvaluation) error {
	if len(evals) == 0 {
		return nil
	}

	type key struct {
		runID string
		index int
	}
	seen := make(map[key]struct{}, len(evals))
	runs := make(map[string]struct{})
	for _, e := range evals {
		if e == nil || e.RunID == "" || e.Index < 0 {
			return storage.ErrInvalidInput
		}
		k := key{e.RunID, e.Index}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[e.RunID] = struct{}{}
	}

	// Grid results are written once per run.
	for runID := range runs {
		var count uint64
		err := s.conn.QueryRow(ctx, `SELECT count(*) FROM grid_evaluations WHERE run_id = ?`, runID).Scan(&count)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO grid_evaluations (
			run_id, idx, param_set_id, params, performance, out_performance, trades, skipped
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range evals {
		params := e.Params
		if params == nil {
			params = []float64{}
		}
		err = batch.Append(
			e.RunID, uint32(e.Index), e.ParamSetID, params,
			e.Performance, e.OutPerf, e.Trades, e.Skipped,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all evaluations of a run, ordered by index ASC.
func (s *GridResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.GridEvaluation, error) {
	query := `
		SELECT run_id, idx, param_set_id, params, performance, out_performance, trades, skipped
		FROM grid_evaluations
		WHERE run_id = ?
		ORDER BY idx ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var evals []*domain.GridEvaluation
	for rows.Next() {
		var (
			e   domain.GridEvaluation
			idx uint32
		)
		err := rows.Scan(
			&e.RunID, &idx, &e.ParamSetID, &e.Params,
			&e.Performance, &e.OutPerf, &e.Trades, &e.Skipped,
		)
		if err != nil {
			return nil, fmt.Errorf("scan grid evaluation row: %w", err)
		}
		e.Index = int(idx)
		evals = append(evals, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grid evaluation rows: %w", err)
	}
	return evals, nil
}
