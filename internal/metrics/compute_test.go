package metrics

import (
	"math"
	"testing"

	"backtest-lab/internal/backtest"
)

// Helper to build a table from net returns and positions
func makeTable(returns, positions []float64) *backtest.ResultTable {
	table := &backtest.ResultTable{Symbol: "TEST"}
	cum := 0.0
	for i, r := range returns {
		cum += r
		table.Rows = append(table.Rows, backtest.Row{
			TimestampMs:  int64(i),
			Position:     positions[i],
			Strategy:     r,
			StrategyNet:  r,
			CReturns:     1,
			CStrategy:    math.Exp(cum),
			CStrategyNet: math.Exp(cum),
		})
	}
	return table
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(nil, 0)
	if stats.Rows != 0 || stats.Sharpe != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestCompute_Basic(t *testing.T) {
	returns := []float64{0.01, -0.02, -0.01, 0.03, 0}
	positions := []float64{1, 1, -1, -1, 0}
	stats := Compute(makeTable(returns, positions), 252)

	if stats.Rows != 5 {
		t.Errorf("expected 5 rows, got %d", stats.Rows)
	}
	if math.Abs(stats.MeanReturn-0.002) > 1e-12 {
		t.Errorf("expected mean 0.002, got %f", stats.MeanReturn)
	}
	if math.Abs(stats.AnnualReturn-0.002*252) > 1e-9 {
		t.Errorf("unexpected annual return %f", stats.AnnualReturn)
	}
	if stats.Exposure != 0.8 {
		t.Errorf("expected exposure 0.8, got %f", stats.Exposure)
	}
	// Invested rows: 0.01, -0.02, -0.01, 0.03 -> 2 wins of 4
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", stats.HitRate)
	}
	if stats.MaxConsecutiveLosses != 2 {
		t.Errorf("expected 2 consecutive losses, got %d", stats.MaxConsecutiveLosses)
	}
	if stats.MedianReturn != 0 {
		t.Errorf("expected median 0, got %f", stats.MedianReturn)
	}
	if stats.Sharpe <= 0 {
		t.Errorf("expected positive sharpe, got %f", stats.Sharpe)
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	curve := []float64{1.1, 1.21, 0.968, 1.0, 1.3}
	got := computeMaxDrawdown(curve)
	want := (1.21 - 0.968) / 1.21
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}

	// Losses from the starting value count
	if got := computeMaxDrawdown([]float64{0.9, 0.95}); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("expected 0.1, got %f", got)
	}
	if got := computeMaxDrawdown(nil); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p, want float64
	}{
		{0, 1}, {0.5, 3}, {1, 5}, {0.1, 1.4}, {0.9, 4.6},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("p=%v: expected %v, got %v", tt.p, tt.want, got)
		}
	}
	if computePercentile(nil, 0.5) != 0 {
		t.Error("expected 0 for empty input")
	}
}

func TestComputeStddev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(values)
	got := computeStddev(values, mean)
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}
	if computeStddev([]float64{1}, 1) != 0 {
		t.Error("expected 0 for single sample")
	}
}

func TestCompute_FlatStrategyHasNoSharpe(t *testing.T) {
	stats := Compute(makeTable([]float64{0, 0, 0}, []float64{0, 0, 0}), 0)
	if stats.Sharpe != 0 || stats.AnnualVolatility != 0 {
		t.Errorf("expected zero volatility and sharpe, got %+v", stats)
	}
	if stats.HitRate != 0 {
		t.Errorf("expected zero hit rate without exposure, got %f", stats.HitRate)
	}
}
