package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func testRun(id string, startedAt int64) *domain.OptimizationRun {
	return &domain.OptimizationRun{
		RunID:        id,
		GridID:       "9f2c",
		Symbol:       "EURUSD",
		StrategyType: domain.StrategyTypeSMACrossover,
		CostPct:      0.1,
		Ranges:       []domain.ParamRange{{Start: 2, Stop: 5, Step: 1}, {Start: 5, Stop: 10, Step: 1}},
		BestParams:   []float64{3, 7},
		Summary:      domain.PerformanceSummary{Performance: 1.083211, OutPerformance: 0.021},
		Combinations: 15,
		Trades:       6,
		StartedAtMs:  startedAt,
		FinishedAtMs: startedAt + 250,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	run := testRun("run-1", 1700000000000)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestRunStore_Errors(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	require.NoError(t, store.Insert(ctx, testRun("run-1", 1)))
	assert.ErrorIs(t, store.Insert(ctx, testRun("run-1", 2)), storage.ErrDuplicateKey)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListBySymbol(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	require.NoError(t, store.Insert(ctx, testRun("run-old", 1000)))
	require.NoError(t, store.Insert(ctx, testRun("run-new", 2000)))

	runs, err := store.ListBySymbol(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)

	none, err := store.ListBySymbol(ctx, "GBPUSD")
	require.NoError(t, err)
	assert.Empty(t, none)
}
