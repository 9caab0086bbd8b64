// Package verification replays persisted optimization runs against a price
// series and reports fields that no longer reproduce.
package verification

import (
	"math"

	"backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
// Summaries are rounded to 6 decimals, so anything closer than this is equal.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // replayed value
}

// RunResult is the verification of a run's best combination.
type RunResult struct {
	RunID               string
	Match               bool
	Divergences         []FieldDivergence
	StoredPerformance   float64
	ReplayedPerformance float64
}

// EvaluationResult is the verification of one stored grid evaluation.
type EvaluationResult struct {
	Index       int
	Params      []float64
	Match       bool
	Divergences []FieldDivergence
}

// GridReport contains results for the evaluations of one run.
type GridReport struct {
	RunID      string
	Total      int // evaluations verified
	Matched    int
	Divergent  int
	Results    []EvaluationResult
	BestIndex  int // index with the highest replayed performance, -1 when all skipped
	BestParams []float64
}

// CompareSummaries compares two performance summaries within FloatTolerance.
func CompareSummaries(stored, replayed domain.PerformanceSummary) []FieldDivergence {
	var divergences []FieldDivergence

	if !floatEquals(stored.Performance, replayed.Performance) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Performance",
			Expected: stored.Performance,
			Actual:   replayed.Performance,
		})
	}

	if !floatEquals(stored.OutPerformance, replayed.OutPerformance) {
		divergences = append(divergences, FieldDivergence{
			Field:    "OutPerformance",
			Expected: stored.OutPerformance,
			Actual:   replayed.OutPerformance,
		})
	}

	return divergences
}

// CompareEvaluations compares a stored grid evaluation with its replay.
// Identity fields (RunID, ParamSetID) are not replayed and not compared.
func CompareEvaluations(stored, replayed *domain.GridEvaluation) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Index != replayed.Index {
		divergences = append(divergences, FieldDivergence{
			Field:    "Index",
			Expected: stored.Index,
			Actual:   replayed.Index,
		})
	}

	// Skipped must match exactly
	if stored.Skipped != replayed.Skipped {
		divergences = append(divergences, FieldDivergence{
			Field:    "Skipped",
			Expected: stored.Skipped,
			Actual:   replayed.Skipped,
		})
		return divergences
	}
	if stored.Skipped {
		return divergences
	}

	divergences = append(divergences, CompareSummaries(
		domain.PerformanceSummary{Performance: stored.Performance, OutPerformance: stored.OutPerf},
		domain.PerformanceSummary{Performance: replayed.Performance, OutPerformance: replayed.OutPerf},
	)...)

	if !floatEquals(stored.Trades, replayed.Trades) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Trades",
			Expected: stored.Trades,
			Actual:   replayed.Trades,
		})
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
