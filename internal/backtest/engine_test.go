package backtest

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/timeseries"
)

// Helper to create a prepared daily series
func makeSeries(t *testing.T, prices []float64) *timeseries.Series {
	t.Helper()
	points := make([]*domain.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = &domain.PricePoint{
			Symbol:      "TEST",
			TimestampMs: 1_600_000_000_000 + int64(i)*86_400_000,
			Price:       p,
		}
	}
	s, err := timeseries.Prepare(points)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return s
}

// recordingPresenter captures Present calls.
type recordingPresenter struct {
	tables []*ResultTable
	titles []string
	err    error
}

func (p *recordingPresenter) Present(table *ResultTable, title string) error {
	p.tables = append(p.tables, table)
	p.titles = append(p.titles, title)
	return p.err
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

var walk = []float64{100, 101, 99, 98, 102, 104, 103, 107, 106, 108, 105, 109}

var walkPositions = []float64{math.NaN(), 1, 1, -1, -1, 0, 1, 1, -1, 1, 1, 0}

func TestEngine_StrategyReturnUsesPreviousPosition(t *testing.T) {
	series := makeSeries(t, walk)
	e := NewEngine(0.5)

	if _, err := e.Evaluate(series, walkPositions, false); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	table, _ := e.LastResult()

	// Row 0 (undefined return) and row 1 (undefined previous position) are dropped
	if len(table.Rows) != len(walk)-2 {
		t.Fatalf("expected %d rows, got %d", len(walk)-2, len(table.Rows))
	}
	for k, row := range table.Rows {
		i := k + 2
		want := walkPositions[i-1] * series.Returns[i]
		if row.Strategy != want {
			t.Errorf("row %d: strategy %v, expected position[i-1]*return[i] = %v", i, row.Strategy, want)
		}
		if row.TimestampMs != series.Timestamps[i] {
			t.Errorf("row %d: timestamp misaligned", i)
		}
	}
}

func TestEngine_FuturePositionsDoNotChangePastReturns(t *testing.T) {
	series := makeSeries(t, walk)

	e := NewEngine(0.5)
	if _, err := e.Evaluate(series, walkPositions, false); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	base, _ := e.LastResult()

	for k := 2; k < len(walk); k++ {
		mutated := append([]float64(nil), walkPositions...)
		for j := k; j < len(mutated); j++ {
			mutated[j] = -mutated[j] + 3
		}

		e2 := NewEngine(0.5)
		if _, err := e2.Evaluate(series, mutated, false); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		got, _ := e2.LastResult()

		// Rows up to and including index k keep their strategy return
		for r := range got.Rows {
			i := r + 2
			if i > k {
				break
			}
			if got.Rows[r].Strategy != base.Rows[r].Strategy {
				t.Errorf("mutating positions from %d changed strategy return at %d", k, i)
			}
			if got.Rows[r].CStrategy != base.Rows[r].CStrategy {
				t.Errorf("mutating positions from %d changed cumulative strategy at %d", k, i)
			}
		}
	}
}

func TestEngine_ZeroCostNetEqualsGross(t *testing.T) {
	e := NewEngine(0)
	if _, err := e.Evaluate(makeSeries(t, walk), walkPositions, false); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	table, _ := e.LastResult()

	if table.HasCost() {
		t.Error("expected HasCost false for zero cost")
	}
	for i, row := range table.Rows {
		if row.CStrategyNet != row.CStrategy {
			t.Errorf("row %d: net %v != gross %v", i, row.CStrategyNet, row.CStrategy)
		}
		if row.StrategyNet != row.Strategy {
			t.Errorf("row %d: net return %v != gross return %v", i, row.StrategyNet, row.Strategy)
		}
	}
}

func TestEngine_CostAccounting(t *testing.T) {
	series := makeSeries(t, []float64{100, 110, 99})
	positions := []float64{1, -1, -1}

	e := NewEngine(1) // 1% -> 0.01
	summary, err := e.Evaluate(series, positions, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	table, _ := e.LastResult()

	if table.Trades != 2 {
		t.Errorf("expected 2 trades (flip counts twice), got %v", table.Trades)
	}

	r1, r2 := math.Log(1.1), math.Log(0.9)
	net1 := r1 - math.Abs(r1)*2*0.01
	net2 := -r2
	wantNet := math.Exp(net1 + net2)
	final := table.Final()
	if !almostEqual(final.CStrategyNet, wantNet) {
		t.Errorf("expected net cumulative %v, got %v", wantNet, final.CStrategyNet)
	}
	if !almostEqual(final.CStrategy, math.Exp(r1-r2)) {
		t.Errorf("expected gross cumulative %v, got %v", math.Exp(r1-r2), final.CStrategy)
	}
	if !almostEqual(final.CReturns, 0.99) {
		t.Errorf("expected buy-and-hold 0.99, got %v", final.CReturns)
	}

	wantPerf := math.Round(wantNet*1e6) / 1e6
	if summary.Performance != wantPerf {
		t.Errorf("expected performance %v, got %v", wantPerf, summary.Performance)
	}
	wantOut := math.Round((wantNet-0.99)*1e6) / 1e6
	if !almostEqual(summary.OutPerformance, wantOut) {
		t.Errorf("expected out-performance %v, got %v", wantOut, summary.OutPerformance)
	}
}

func TestEngine_ConstantPositionHasNoTrades(t *testing.T) {
	series := makeSeries(t, walk)
	positions := make([]float64, len(walk))
	for i := range positions {
		positions[i] = 1
	}

	free := NewEngine(0)
	costly := NewEngine(5)

	s1, err := free.Evaluate(series, positions, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	s2, err := costly.Evaluate(series, positions, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	table, _ := costly.LastResult()
	for i, row := range table.Rows {
		if row.Trade != 0 {
			t.Errorf("row %d: expected no trade, got %v", i, row.Trade)
		}
	}
	if table.Trades != 0 {
		t.Errorf("expected 0 trades, got %v", table.Trades)
	}
	if s1 != s2 {
		t.Errorf("cost changed result without trades: %+v vs %+v", s1, s2)
	}
	if s1.OutPerformance != 0 {
		t.Errorf("always-long should match buy-and-hold, out-performance %v", s1.OutPerformance)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	series := makeSeries(t, walk)
	e := NewEngine(0.25)

	first, err := e.Evaluate(series, walkPositions, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	firstTable, _ := e.LastResult()

	second, err := e.Evaluate(series, walkPositions, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	secondTable, _ := e.LastResult()

	if first != second {
		t.Errorf("summaries differ: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(firstTable, secondTable) {
		t.Error("stored tables differ between identical evaluations")
	}
}

func TestEngine_LastResultOverwritten(t *testing.T) {
	series := makeSeries(t, walk)
	e := NewEngine(0)

	if _, err := e.Evaluate(series, walkPositions, false); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	first, _ := e.LastResult()

	flat := make([]float64, len(walk))
	if _, err := e.Evaluate(series, flat, false); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	second, _ := e.LastResult()

	if first == second {
		t.Fatal("expected a new table after re-evaluation")
	}
	if second.Final().CStrategy != 1 {
		t.Errorf("flat position should keep strategy at 1, got %v", second.Final().CStrategy)
	}
}

func TestEngine_ReportWithoutEvaluation(t *testing.T) {
	presenter := &recordingPresenter{}
	e := NewEngine(0, WithPresenter(presenter))

	err := e.Report("nothing yet")
	if !errors.Is(err, domain.ErrNoPriorResult) {
		t.Fatalf("expected ErrNoPriorResult, got %v", err)
	}
	if _, err := e.LastResult(); !errors.Is(err, domain.ErrNoPriorResult) {
		t.Errorf("expected ErrNoPriorResult from LastResult, got %v", err)
	}
	if len(presenter.tables) != 0 {
		t.Error("presenter must not be called without a result")
	}
}

func TestEngine_EmitReport(t *testing.T) {
	series := makeSeries(t, walk)
	presenter := &recordingPresenter{}
	e := NewEngine(0.1, WithPresenter(presenter))

	quiet, err := e.Evaluate(series, walkPositions, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(presenter.tables) != 0 {
		t.Fatal("presenter called without emitReport")
	}

	loud, err := e.EvaluateTitled(series, walkPositions, true, "TEST | custom")
	if err != nil {
		t.Fatalf("EvaluateTitled failed: %v", err)
	}
	if quiet != loud {
		t.Errorf("reporting altered summary: %+v vs %+v", quiet, loud)
	}
	if len(presenter.tables) != 1 {
		t.Fatalf("expected 1 presentation, got %d", len(presenter.tables))
	}
	last, _ := e.LastResult()
	if presenter.tables[0] != last {
		t.Error("presenter should receive the stored table")
	}
	if presenter.titles[0] != "TEST | custom" {
		t.Errorf("unexpected title %q", presenter.titles[0])
	}

	if _, err := e.Evaluate(series, walkPositions, true); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if presenter.titles[1] != "TEST | TC = 0.001" {
		t.Errorf("unexpected default title %q", presenter.titles[1])
	}
}

func TestEngine_PresenterError(t *testing.T) {
	boom := errors.New("disk full")
	e := NewEngine(0, WithPresenter(&recordingPresenter{err: boom}))

	summary, err := e.Evaluate(makeSeries(t, walk), walkPositions, true)
	if !errors.Is(err, boom) {
		t.Fatalf("expected presenter error, got %v", err)
	}
	if summary.Performance == 0 {
		t.Error("summary should still be returned with a presenter error")
	}
}

func TestEngine_ReportWithoutPresenter(t *testing.T) {
	e := NewEngine(0)
	if _, err := e.Evaluate(makeSeries(t, walk), walkPositions, true); err != nil {
		t.Errorf("expected no error without presenter, got %v", err)
	}
}

func TestEngine_DataErrors(t *testing.T) {
	series := makeSeries(t, walk)
	nanPositions := make([]float64, len(walk))
	for i := range nanPositions {
		nanPositions[i] = math.NaN()
	}
	infPositions := append([]float64(nil), walkPositions...)
	infPositions[3] = math.Inf(1)

	tests := []struct {
		name      string
		series    *timeseries.Series
		positions []float64
	}{
		{"nil series", nil, walkPositions},
		{"short positions", series, walkPositions[:5]},
		{"all undefined", series, nanPositions},
		{"infinite position", series, infPositions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(0)
			_, err := e.Evaluate(tt.series, tt.positions, false)
			if !errors.Is(err, domain.ErrData) {
				t.Fatalf("expected ErrData, got %v", err)
			}
			if _, err := e.LastResult(); !errors.Is(err, domain.ErrNoPriorResult) {
				t.Error("failed evaluation must not populate the last result")
			}
		})
	}
}

func TestEngine_Columns(t *testing.T) {
	e := NewEngine(0, WithColumns("adj_close", "log_ret"))
	if _, err := e.Evaluate(makeSeries(t, walk), walkPositions, false); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	table, _ := e.LastResult()
	if table.PriceColumn != "adj_close" || table.ReturnsColumn != "log_ret" {
		t.Errorf("unexpected columns %s/%s", table.PriceColumn, table.ReturnsColumn)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.0198019801980198, 1.019802},
		{0.0000004, 0},
		{-0.0000015, -0.000002},
		{2, 2},
	}
	for _, tt := range tests {
		if got := round(tt.in); got != tt.want {
			t.Errorf("round(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
