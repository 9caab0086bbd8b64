package reporting

import (
	"time"

	"backtest-lab/internal/domain"
)

// RunReport describes one persisted optimization run.
type RunReport struct {
	GeneratedAt time.Time
	Run         *domain.OptimizationRun

	// Grid coverage
	Evaluated int
	Skipped   int

	// Top combinations by performance, best first (ties in enumeration order)
	Top []*domain.GridEvaluation

	// Per-axis sensitivity (sorted by axis, value)
	Sensitivity []SensitivityRow
}

// SensitivityRow aggregates the performance of every evaluated combination
// sharing one value on one parameter axis.
type SensitivityRow struct {
	Axis            int
	Value           float64
	Count           int
	MeanPerformance float64
	BestPerformance float64
}
