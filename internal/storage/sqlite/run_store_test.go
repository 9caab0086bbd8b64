package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(id, symbol string, startedAt int64) *domain.OptimizationRun {
	return &domain.OptimizationRun{
		RunID:        id,
		GridID:       "grid-1",
		Symbol:       symbol,
		StrategyType: domain.StrategyTypeMomentum,
		CostPct:      0.05,
		Ranges:       []domain.ParamRange{{Start: 1, Stop: 10, Step: 1}},
		BestParams:   []float64{4},
		Summary:      domain.PerformanceSummary{Performance: 1.234567, OutPerformance: -0.1},
		Combinations: 9,
		Trades:       11,
		StartedAtMs:  startedAt,
		FinishedAtMs: startedAt + 10,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	ctx := context.Background()

	run := testRun("r1", "EURUSD", 1000)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestRunStore_Errors(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRun("r1", "EURUSD", 1000)))
	assert.ErrorIs(t, store.Insert(ctx, testRun("r1", "EURUSD", 2000)), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, testRun("r2", "", 2000)), storage.ErrInvalidInput)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListBySymbol(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRun("r1", "EURUSD", 1000)))
	require.NoError(t, store.Insert(ctx, testRun("r2", "EURUSD", 3000)))
	require.NoError(t, store.Insert(ctx, testRun("r3", "GBPUSD", 2000)))

	runs, err := store.ListBySymbol(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].RunID)
	assert.Equal(t, "r1", runs[1].RunID)
}

func TestRunStore_EmptyBestParams(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	ctx := context.Background()

	run := testRun("r1", "EURUSD", 1000)
	run.BestParams = nil
	run.Ranges = nil
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, got.BestParams)
	assert.Empty(t, got.Ranges)
}
