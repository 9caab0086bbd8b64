package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// DefaultTopN is the number of best combinations listed in a run report.
const DefaultTopN = 10

// Generator produces run reports from stored data.
type Generator struct {
	runStore  storage.RunStore
	gridStore storage.GridResultStore // optional
	topN      int
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. gridStore may be nil, in which
// case reports carry only the run summary.
func NewGenerator(runStore storage.RunStore, gridStore storage.GridResultStore) *Generator {
	return &Generator{
		runStore:  runStore,
		gridStore: gridStore,
		topN:      DefaultTopN,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopN sets how many combinations are listed.
func (g *Generator) WithTopN(n int) *Generator {
	if n > 0 {
		g.topN = n
	}
	return g
}

// Generate builds the report of one run. Returns storage.ErrNotFound for unknown runs.
func (g *Generator) Generate(ctx context.Context, runID string) (*RunReport, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	report := &RunReport{
		GeneratedAt: g.now(),
		Run:         run,
	}
	if g.gridStore == nil {
		return report, nil
	}

	evals, err := g.gridStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load grid of run %s: %w", runID, err)
	}

	valid := make([]*domain.GridEvaluation, 0, len(evals))
	for _, e := range evals {
		if e.Skipped {
			report.Skipped++
			continue
		}
		valid = append(valid, e)
	}
	report.Evaluated = len(valid)
	report.Top = topEvaluations(valid, g.topN)
	report.Sensitivity = sensitivity(valid)
	return report, nil
}

// List returns the stored runs of a symbol, most recent first.
func (g *Generator) List(ctx context.Context, symbol string) ([]*domain.OptimizationRun, error) {
	return g.runStore.ListBySymbol(ctx, symbol)
}

// topEvaluations sorts by performance DESC, then index ASC.
func topEvaluations(evals []*domain.GridEvaluation, n int) []*domain.GridEvaluation {
	sorted := make([]*domain.GridEvaluation, len(evals))
	copy(sorted, evals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Performance != sorted[j].Performance {
			return sorted[i].Performance > sorted[j].Performance
		}
		return sorted[i].Index < sorted[j].Index
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func sensitivity(evals []*domain.GridEvaluation) []SensitivityRow {
	type key struct {
		axis  int
		value float64
	}
	groups := make(map[key]*SensitivityRow)

	for _, e := range evals {
		for axis, v := range e.Params {
			k := key{axis, v}
			row, ok := groups[k]
			if !ok {
				row = &SensitivityRow{Axis: axis, Value: v, BestPerformance: e.Performance}
				groups[k] = row
			}
			row.Count++
			row.MeanPerformance += e.Performance
			if e.Performance > row.BestPerformance {
				row.BestPerformance = e.Performance
			}
		}
	}

	rows := make([]SensitivityRow, 0, len(groups))
	for _, row := range groups {
		row.MeanPerformance /= float64(row.Count)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Axis != rows[j].Axis {
			return rows[i].Axis < rows[j].Axis
		}
		return rows[i].Value < rows[j].Value
	})
	return rows
}
