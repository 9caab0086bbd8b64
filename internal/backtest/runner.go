package backtest

import (
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/strategy"
	"backtest-lab/internal/timeseries"
)

// Runner binds a strategy and a price series to an evaluation engine.
type Runner struct {
	strategy strategy.Strategy
	series   *timeseries.Series
	engine   *Engine
}

// NewRunner creates a new backtest runner.
func NewRunner(s strategy.Strategy, series *timeseries.Series, engine *Engine) *Runner {
	return &Runner{
		strategy: s,
		series:   series,
		engine:   engine,
	}
}

// Strategy returns the bound strategy.
func (r *Runner) Strategy() strategy.Strategy {
	return r.strategy
}

// Engine returns the bound engine.
func (r *Runner) Engine() *Engine {
	return r.engine
}

// Series returns the bound series.
func (r *Runner) Series() *timeseries.Series {
	return r.series
}

// Title is the report title for the current parameters.
func (r *Runner) Title() string {
	return fmt.Sprintf("%s | %s | TC = %g", r.series.Symbol, r.strategy.ID(), r.engine.CostRate())
}

// Run optionally updates strategy parameters, computes positions and evaluates them.
// With no params the current strategy parameters are used.
func (r *Runner) Run(emitReport bool, params ...float64) (domain.PerformanceSummary, error) {
	if len(params) > 0 {
		if err := r.strategy.SetParameters(params...); err != nil {
			return domain.PerformanceSummary{}, err
		}
	}

	positions, err := r.strategy.Positions(r.series)
	if err != nil {
		return domain.PerformanceSummary{}, fmt.Errorf("compute positions for %s: %w", r.strategy.ID(), err)
	}

	return r.engine.EvaluateTitled(r.series, positions, emitReport, r.Title())
}

// Objective updates parameters and returns the negated performance, the value a
// minimizing search works with.
func (r *Runner) Objective(params ...float64) (float64, error) {
	summary, err := r.Run(false, params...)
	if err != nil {
		return 0, err
	}
	return -summary.Performance, nil
}
