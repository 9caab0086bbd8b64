package instrumented

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/memory"
)

func newMetrics() *observability.Metrics {
	return observability.NewMetricsWith("test", prometheus.NewRegistry())
}

func TestPriceSeriesStore_RecordsQueries(t *testing.T) {
	m := newMetrics()
	store := NewPriceSeriesStore(memory.NewPriceSeriesStore(), "memory", m)
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Symbol: "SPY", TimestampMs: 1, Price: 100},
		{Symbol: "SPY", TimestampMs: 2, Price: 101},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	err := store.InsertBulk(ctx, points)
	require.True(t, errors.Is(err, storage.ErrDuplicateKey))

	got, err := store.GetBySymbol(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.GetByTimeRange(ctx, "SPY", 2, 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	symbols, err := store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, symbols)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("memory", "price_insert_bulk")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("memory", "price_get_by_symbol")))
	assert.Equal(t, 4, testutil.CollectAndCount(m.DBQueryDuration))
}

func TestRunAndGridStores_RecordQueries(t *testing.T) {
	m := newMetrics()
	runs := NewRunStore(memory.NewRunStore(), "sqlite", m)
	grid := NewGridResultStore(memory.NewGridResultStore(), "clickhouse", m)
	ctx := context.Background()

	run := &domain.OptimizationRun{RunID: "r1", Symbol: "SPY", StrategyType: domain.StrategyTypeMomentum}
	require.NoError(t, runs.Insert(ctx, run))

	got, err := runs.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "SPY", got.Symbol)

	_, err = runs.GetByID(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	list, err := runs.ListBySymbol(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, grid.InsertBulk(ctx, []*domain.GridEvaluation{
		{RunID: "r1", Index: 0, Params: []float64{5}, Performance: 1.01},
	}))
	evals, err := grid.GetByRunID(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, evals, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("sqlite", "run_get_by_id")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("clickhouse", "grid_insert_bulk")))
}
