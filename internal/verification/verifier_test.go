package verification

import (
	"context"
	"errors"
	"testing"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/strategy"
	"backtest-lab/internal/timeseries"
)

var testPrices = []float64{100, 102, 101, 105, 103, 107, 104, 108, 111, 109, 112, 110}

func testSeries(t *testing.T, symbol string) *timeseries.Series {
	t.Helper()
	points := make([]*domain.PricePoint, len(testPrices))
	for i, p := range testPrices {
		points[i] = &domain.PricePoint{Symbol: symbol, TimestampMs: int64(i+1) * 86_400_000, Price: p}
	}
	series, err := timeseries.Prepare(points)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return series
}

// replay evaluates params the way an optimization run would have.
func replay(t *testing.T, series *timeseries.Series, strategyType string, costPct float64, params ...float64) (domain.PerformanceSummary, float64) {
	t.Helper()
	s, err := strategy.FromConfig(domain.StrategyConfig{StrategyType: strategyType})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	runner := backtest.NewRunner(s, series, backtest.NewEngine(costPct))
	summary, err := runner.Run(false, params...)
	if err != nil {
		t.Fatalf("run %v: %v", params, err)
	}
	table, err := runner.Engine().LastResult()
	if err != nil {
		t.Fatalf("last result: %v", err)
	}
	return summary, table.Trades
}

func storedRun(t *testing.T, series *timeseries.Series, runID string) *domain.OptimizationRun {
	t.Helper()
	summary, trades := replay(t, series, domain.StrategyTypeSMACrossover, 0.1, 2, 4)
	return &domain.OptimizationRun{
		RunID:        runID,
		Symbol:       series.Symbol,
		StrategyType: domain.StrategyTypeSMACrossover,
		CostPct:      0.1,
		BestParams:   []float64{2, 4},
		Summary:      summary,
		Trades:       trades,
		Combinations: 3,
	}
}

func TestVerifyRun_Match(t *testing.T) {
	ctx := context.Background()
	series := testSeries(t, "TEST")
	runs := memory.NewRunStore()
	if err := runs.Insert(ctx, storedRun(t, series, "run-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: runs, Series: series})
	result, err := v.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if !result.Match {
		t.Errorf("expected match, got divergences %+v", result.Divergences)
	}
	if result.StoredPerformance != result.ReplayedPerformance {
		t.Errorf("performance: stored %v, replayed %v", result.StoredPerformance, result.ReplayedPerformance)
	}
}

func TestVerifyRun_PerformanceDivergence(t *testing.T) {
	ctx := context.Background()
	series := testSeries(t, "TEST")
	run := storedRun(t, series, "run-1")
	run.Summary.Performance += 0.01
	runs := memory.NewRunStore()
	if err := runs.Insert(ctx, run); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: runs, Series: series})
	result, err := v.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if result.Match {
		t.Fatal("expected divergence")
	}
	if len(result.Divergences) != 1 || result.Divergences[0].Field != "Performance" {
		t.Errorf("divergences = %+v, want one Performance divergence", result.Divergences)
	}
}

func TestVerifyRun_TradesDivergence(t *testing.T) {
	ctx := context.Background()
	series := testSeries(t, "TEST")
	run := storedRun(t, series, "run-1")
	run.Trades++
	runs := memory.NewRunStore()
	if err := runs.Insert(ctx, run); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: runs, Series: series})
	result, err := v.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if len(result.Divergences) != 1 || result.Divergences[0].Field != "Trades" {
		t.Errorf("divergences = %+v, want one Trades divergence", result.Divergences)
	}
}

func TestVerifyRun_NotFound(t *testing.T) {
	series := testSeries(t, "TEST")
	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: memory.NewRunStore(), Series: series})

	_, err := v.VerifyRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestVerifyRun_SymbolMismatch(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	if err := runs.Insert(ctx, storedRun(t, testSeries(t, "TEST"), "run-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: runs, Series: testSeries(t, "OTHER")})
	_, err := v.VerifyRun(ctx, "run-1")
	if !errors.Is(err, ErrSymbolMismatch) {
		t.Errorf("expected ErrSymbolMismatch, got %v", err)
	}
}

func TestVerifyGrid(t *testing.T) {
	ctx := context.Background()
	series := testSeries(t, "TEST")
	runs := memory.NewRunStore()
	grid := memory.NewGridResultStore()
	if err := runs.Insert(ctx, storedRun(t, series, "run-1")); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	first, firstTrades := replay(t, series, domain.StrategyTypeSMACrossover, 0.1, 2, 3)
	second, secondTrades := replay(t, series, domain.StrategyTypeSMACrossover, 0.1, 2, 4)
	evals := []*domain.GridEvaluation{
		{RunID: "run-1", Index: 0, Params: []float64{2, 3}, Performance: first.Performance, OutPerf: first.OutPerformance, Trades: firstTrades},
		{RunID: "run-1", Index: 1, Params: []float64{2, 4}, Performance: second.Performance + 1, OutPerf: second.OutPerformance, Trades: secondTrades},
		{RunID: "run-1", Index: 2, Params: []float64{3, 3}, Skipped: true},
	}
	if err := grid.InsertBulk(ctx, evals); err != nil {
		t.Fatalf("insert grid: %v", err)
	}

	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: runs, GridStore: grid, Series: series})
	report, err := v.VerifyGrid(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyGrid: %v", err)
	}

	if report.Total != 3 || report.Matched != 2 || report.Divergent != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", report.Total, report.Matched, report.Divergent)
	}
	if report.Results[1].Match {
		t.Error("evaluation 1 should diverge")
	}
	if !report.Results[2].Match {
		t.Errorf("skipped evaluation should match, got %+v", report.Results[2].Divergences)
	}
	if report.BestIndex < 0 || report.BestIndex > 1 {
		t.Errorf("BestIndex = %d, want a non-skipped index", report.BestIndex)
	}
}

func TestVerifyGrid_NoGridStore(t *testing.T) {
	v := NewReplayVerifier(ReplayVerifierOptions{RunStore: memory.NewRunStore(), Series: testSeries(t, "TEST")})
	if _, err := v.VerifyGrid(context.Background(), "run-1"); err == nil {
		t.Error("expected error without grid store")
	}
}

func TestCompareSummaries_WithinTolerance(t *testing.T) {
	stored := domain.PerformanceSummary{Performance: 1.234567, OutPerformance: 0.1}
	replayed := domain.PerformanceSummary{Performance: 1.234567 + 5e-8, OutPerformance: 0.1 - 5e-8}

	if d := CompareSummaries(stored, replayed); len(d) != 0 {
		t.Errorf("expected no divergences within tolerance, got %+v", d)
	}
}

func TestCompareSummaries_BothFields(t *testing.T) {
	stored := domain.PerformanceSummary{Performance: 1.1, OutPerformance: 0.1}
	replayed := domain.PerformanceSummary{Performance: 1.2, OutPerformance: 0.2}

	d := CompareSummaries(stored, replayed)
	if len(d) != 2 {
		t.Fatalf("expected 2 divergences, got %d", len(d))
	}
	if d[0].Field != "Performance" || d[1].Field != "OutPerformance" {
		t.Errorf("fields = %s, %s", d[0].Field, d[1].Field)
	}
}

func TestCompareEvaluations_SkippedMismatch(t *testing.T) {
	stored := &domain.GridEvaluation{Index: 4, Skipped: true}
	replayed := &domain.GridEvaluation{Index: 4, Performance: 1.05}

	d := CompareEvaluations(stored, replayed)
	if len(d) != 1 || d[0].Field != "Skipped" {
		t.Errorf("divergences = %+v, want only Skipped", d)
	}
}

func TestCompareEvaluations_IgnoresIdentity(t *testing.T) {
	stored := &domain.GridEvaluation{RunID: "a", ParamSetID: "x", Index: 1, Performance: 1.01, Trades: 3}
	replayed := &domain.GridEvaluation{RunID: "b", Index: 1, Performance: 1.01, Trades: 3}

	if d := CompareEvaluations(stored, replayed); len(d) != 0 {
		t.Errorf("expected no divergences, got %+v", d)
	}
}
