package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/timeseries"
)

// Default column names used in rendered tables.
const (
	DefaultPriceColumn   = "close"
	DefaultReturnsColumn = "returns"
)

// summaryPlaces is the rounding applied to PerformanceSummary values.
const summaryPlaces = 6

// Presenter renders an evaluated table. Implementations live in internal/reporting.
type Presenter interface {
	Present(table *ResultTable, title string) error
}

// Row is one evaluated time step.
type Row struct {
	TimestampMs  int64
	Price        float64
	Return       float64 // log return over the previous step
	Position     float64
	Trade        float64 // |position[i] - position[i-1]|
	Strategy     float64 // position[i-1] * return[i]
	StrategyNet  float64 // Strategy - |return| * trade * cost rate
	CReturns     float64 // cumulative buy-and-hold
	CStrategy    float64 // cumulative gross strategy
	CStrategyNet float64 // cumulative net strategy
}

// ResultTable is the full output of one evaluation, leading undefined rows dropped.
type ResultTable struct {
	Symbol        string
	PriceColumn   string
	ReturnsColumn string
	CostRate      float64
	Trades        float64 // sum of the trade indicator
	Rows          []Row
}

// Final returns the last row. The table is never empty.
func (t *ResultTable) Final() Row {
	return t.Rows[len(t.Rows)-1]
}

// HasCost reports whether net and gross curves can differ.
func (t *ResultTable) HasCost() bool {
	return t.CostRate != 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for the per-evaluation trade count.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPresenter sets the collaborator invoked when a report is requested.
func WithPresenter(p Presenter) Option {
	return func(e *Engine) {
		e.presenter = p
	}
}

// WithMetrics records evaluation counts and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithColumns overrides the price and returns column names.
func WithColumns(priceColumn, returnsColumn string) Option {
	return func(e *Engine) {
		if priceColumn != "" {
			e.priceColumn = priceColumn
		}
		if returnsColumn != "" {
			e.returnsColumn = returnsColumn
		}
	}
}

// Engine is the vectorized evaluation pipeline.
// It keeps only the most recent result; an Engine must not be shared between goroutines.
type Engine struct {
	costRate      float64
	priceColumn   string
	returnsColumn string
	logger        *zap.Logger
	presenter     Presenter
	metrics       *observability.Metrics

	last optional.Option[*ResultTable]
}

// NewEngine creates an engine charging costPct percent per unit of position change.
func NewEngine(costPct float64, opts ...Option) *Engine {
	e := &Engine{
		costRate:      costPct / 100,
		priceColumn:   DefaultPriceColumn,
		returnsColumn: DefaultReturnsColumn,
		logger:        zap.NewNop(),
		last:          optional.None[*ResultTable](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CostRate returns the fractional cost rate (percent / 100).
func (e *Engine) CostRate() float64 {
	return e.costRate
}

// Evaluate runs the pipeline with a default report title.
func (e *Engine) Evaluate(series *timeseries.Series, positions []float64, emitReport bool) (domain.PerformanceSummary, error) {
	title := ""
	if series != nil {
		title = fmt.Sprintf("%s | TC = %g", series.Symbol, e.costRate)
	}
	return e.EvaluateTitled(series, positions, emitReport, title)
}

// EvaluateTitled turns positions into strategy returns net of costs, stores the
// table as the last result and returns the rounded performance summary.
// When emitReport is set the presenter receives the stored table and title.
func (e *Engine) EvaluateTitled(series *timeseries.Series, positions []float64, emitReport bool, title string) (domain.PerformanceSummary, error) {
	start := time.Now()

	table, err := e.assess(series, positions)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordEvaluation("error", time.Since(start).Seconds())
		}
		return domain.PerformanceSummary{}, err
	}

	e.logger.Info("Number of trades", zap.Float64("trades", table.Trades), zap.Int("rows", len(table.Rows)))
	e.last = optional.Some(table)

	final := table.Final()
	summary := domain.PerformanceSummary{
		Performance:    round(final.CStrategyNet),
		OutPerformance: round(final.CStrategyNet - final.CReturns),
	}

	if e.metrics != nil {
		e.metrics.RecordEvaluation("ok", time.Since(start).Seconds())
	}

	if emitReport {
		if err := e.Report(title); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// LastResult returns the table stored by the most recent successful evaluation.
func (e *Engine) LastResult() (*ResultTable, error) {
	if e.last.IsNone() {
		return nil, domain.ErrNoPriorResult
	}
	return e.last.Unwrap(), nil
}

// Report hands the last result to the presenter.
// Returns domain.ErrNoPriorResult if nothing was evaluated yet.
func (e *Engine) Report(title string) error {
	table, err := e.LastResult()
	if err != nil {
		return fmt.Errorf("report %q: %w", title, err)
	}
	if e.presenter == nil {
		e.logger.Warn("no presenter configured, skipping report", zap.String("title", title))
		return nil
	}
	if err := e.presenter.Present(table, title); err != nil {
		return fmt.Errorf("present %q: %w", title, err)
	}
	return nil
}

// assess builds the result table.
func (e *Engine) assess(series *timeseries.Series, positions []float64) (*ResultTable, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	n := series.Len()
	if len(series.Returns) != n || len(series.Timestamps) != n {
		return nil, fmt.Errorf("%w: series columns misaligned", domain.ErrData)
	}
	if len(positions) != n {
		return nil, fmt.Errorf("%w: %d positions for %d observations", domain.ErrData, len(positions), n)
	}
	for i, p := range positions {
		if math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: infinite position at index %d", domain.ErrData, i)
		}
	}

	table := &ResultTable{
		Symbol:        series.Symbol,
		PriceColumn:   e.priceColumn,
		ReturnsColumn: e.returnsColumn,
		CostRate:      e.costRate,
		Rows:          make([]Row, 0, n),
	}

	var cumReturns, cumStrategy, cumNet float64
	for i := 0; i < n; i++ {
		ret := series.Returns[i]
		pos := positions[i]

		trade := 0.0
		if i > 0 {
			if d := math.Abs(pos - positions[i-1]); !math.IsNaN(d) {
				trade = d
			}
		}

		// Position held over the step (i-1 -> i) earns return[i].
		strat := math.NaN()
		if i > 0 {
			strat = positions[i-1] * ret
		}
		net := strat - math.Abs(ret)*trade*e.costRate

		if math.IsNaN(ret) || math.IsNaN(pos) || math.IsNaN(strat) {
			continue
		}

		cumReturns += ret
		cumStrategy += strat
		cumNet += net
		table.Trades += trade
		table.Rows = append(table.Rows, Row{
			TimestampMs:  series.Timestamps[i],
			Price:        series.Prices[i],
			Return:       ret,
			Position:     pos,
			Trade:        trade,
			Strategy:     strat,
			StrategyNet:  net,
			CReturns:     math.Exp(cumReturns),
			CStrategy:    math.Exp(cumStrategy),
			CStrategyNet: math.Exp(cumNet),
		})
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: no evaluable rows after dropping undefined values", domain.ErrData)
	}
	return table, nil
}

// round rounds half away from zero to summaryPlaces decimals.
func round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(summaryPlaces).InexactFloat64()
}
