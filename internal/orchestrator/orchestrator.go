// Package orchestrator wires configuration, price data, strategies and stores
// into single backtests and persisted grid searches.
// Flow: load series → build runner → evaluate or optimize → persist
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/config"
	"backtest-lab/internal/dataio"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/metrics"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/optimize"
	"backtest-lab/internal/strategy"
	"backtest-lab/internal/timeseries"
	"backtest-lab/internal/verification"
)

// ErrNoPrices is returned when the store holds no observations for the symbol.
var ErrNoPrices = errors.New("no prices stored for symbol")

// Orchestrator coordinates backtest and optimization runs.
type Orchestrator struct {
	cfg       *config.Config
	stores    *Stores
	presenter backtest.Presenter
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newRunID  func() string
}

// Options for creating Orchestrator.
type Options struct {
	Config *config.Config
	// Stores defaults to MemoryStores.
	Stores *Stores
	// Presenter receives the table of the reported evaluation. Optional.
	Presenter backtest.Presenter

	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Clock and NewRunID default to time.Now and uuid.NewString.
	Clock    func() time.Time
	NewRunID func() string
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:       opts.Config,
		stores:    opts.Stores,
		presenter: opts.Presenter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Clock,
		newRunID:  opts.NewRunID,
	}
	if o.stores == nil {
		o.stores = MemoryStores()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	return o
}

// Config returns the configuration the orchestrator runs with.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// Stores returns the stores runs are persisted to.
func (o *Orchestrator) Stores() *Stores {
	return o.stores
}

// LoadSeries loads the configured price series and applies the window.
func (o *Orchestrator) LoadSeries(ctx context.Context) (*timeseries.Series, error) {
	data := o.cfg.Data
	start, end, bounded := data.Window()

	var points []*domain.PricePoint
	var err error
	switch data.Source {
	case config.SourceStore:
		if bounded {
			points, err = o.stores.Prices.GetByTimeRange(ctx, data.Symbol, start, end)
		} else {
			points, err = o.stores.Prices.GetBySymbol(ctx, data.Symbol)
		}
		if err == nil && len(points) == 0 {
			err = fmt.Errorf("%w: %s", ErrNoPrices, data.Symbol)
		}
	case config.SourceParquet:
		points, err = dataio.LoadParquetFile(data.Path, data.Symbol)
	default:
		points, err = dataio.LoadCSVFile(data.Path, dataio.CSVOptions{
			Symbol:          data.Symbol,
			TimestampColumn: data.TimestampColumn,
			PriceColumn:     data.PriceColumn,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load %s prices: %w", data.Source, err)
	}

	series, err := timeseries.Prepare(points)
	if err != nil {
		return nil, err
	}
	if bounded && data.Source != config.SourceStore {
		series, err = series.Slice(start, end)
		if err != nil {
			return nil, fmt.Errorf("window [%d, %d]: %w", start, end, err)
		}
	}

	o.logger.Info("series loaded",
		zap.String("symbol", series.Symbol),
		zap.String("source", data.Source),
		zap.Int("observations", series.Len()),
	)
	return series, nil
}

func (o *Orchestrator) newEngine() *backtest.Engine {
	opts := []backtest.Option{
		backtest.WithLogger(o.logger),
		backtest.WithColumns(o.cfg.Data.PriceColumn, o.cfg.Data.ReturnsColumn),
	}
	if o.presenter != nil {
		opts = append(opts, backtest.WithPresenter(o.presenter))
	}
	if o.metrics != nil {
		opts = append(opts, backtest.WithMetrics(o.metrics))
	}
	return backtest.NewEngine(o.cfg.Trading.CostPct, opts...)
}

// newRunnerFactory returns a constructor of independent runners on series.
func (o *Orchestrator) newRunnerFactory(series *timeseries.Series) (func() (*backtest.Runner, error), error) {
	newStrategy, err := strategy.NewFactory(o.cfg.Strategy.Domain())
	if err != nil {
		return nil, err
	}
	return func() (*backtest.Runner, error) {
		s, err := newStrategy()
		if err != nil {
			return nil, err
		}
		return backtest.NewRunner(s, series, o.newEngine()), nil
	}, nil
}

// BacktestResult is the outcome of a single reported evaluation.
type BacktestResult struct {
	Title   string
	Params  []float64
	Summary domain.PerformanceSummary
	Table   *backtest.ResultTable
	Stats   *metrics.Stats
}

// RunBacktest evaluates the configured strategy once with reporting.
func (o *Orchestrator) RunBacktest(ctx context.Context) (*BacktestResult, error) {
	series, err := o.LoadSeries(ctx)
	if err != nil {
		return nil, err
	}

	newRunner, err := o.newRunnerFactory(series)
	if err != nil {
		return nil, err
	}
	runner, err := newRunner()
	if err != nil {
		return nil, err
	}

	summary, err := runner.Run(true)
	if err != nil {
		return nil, err
	}
	table, err := runner.Engine().LastResult()
	if err != nil {
		return nil, err
	}

	return &BacktestResult{
		Title:   runner.Title(),
		Params:  runner.Strategy().Parameters(),
		Summary: summary,
		Table:   table,
		Stats:   metrics.Compute(table, o.cfg.Data.PeriodsPerYear),
	}, nil
}

// OptimizationResult is a persisted grid search.
type OptimizationResult struct {
	Run    *domain.OptimizationRun
	Result *optimize.Result
}

// RunOptimization searches the configured grid, replays the best combination
// with reporting and persists the run and its evaluations.
func (o *Orchestrator) RunOptimization(ctx context.Context, onProgress optimize.ProgressFunc) (*OptimizationResult, error) {
	started := o.now()

	o.logger.Info("phase 1: loading series")
	series, err := o.LoadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load series) failed: %w", err)
	}

	o.logger.Info("phase 2: grid search")
	newRunner, err := o.newRunnerFactory(series)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (build runner) failed: %w", err)
	}
	runner, err := newRunner()
	if err != nil {
		return nil, fmt.Errorf("phase 2 (build runner) failed: %w", err)
	}

	opt := optimize.New(optimize.Options{
		Runner:       runner,
		NewRunner:    newRunner,
		Workers:      o.cfg.Optimize.Workers,
		SkipInvalid:  o.cfg.Optimize.SkipInvalid,
		StrategyType: o.cfg.Strategy.Type,
		Logger:       o.logger,
		Metrics:      o.metrics,
		OnProgress:   onProgress,
	})
	res, err := opt.Run(ctx, o.cfg.Optimize.Ranges)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (grid search) failed: %w", err)
	}

	run := &domain.OptimizationRun{
		RunID:        o.newRunID(),
		GridID:       idhash.ComputeGridID(series.Symbol, o.cfg.Strategy.Type, o.cfg.Trading.CostPct, o.cfg.Optimize.Ranges),
		Symbol:       series.Symbol,
		StrategyType: o.cfg.Strategy.Type,
		CostPct:      o.cfg.Trading.CostPct,
		Ranges:       append([]domain.ParamRange(nil), o.cfg.Optimize.Ranges...),
		BestParams:   append([]float64(nil), res.BestParams...),
		Summary:      res.Summary,
		Combinations: res.Combinations,
		Trades:       res.Trades,
		StartedAtMs:  started.UnixMilli(),
		FinishedAtMs: o.now().UnixMilli(),
	}

	o.logger.Info("phase 3: persisting run", zap.String("run_id", run.RunID))
	if err := o.stores.Runs.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("phase 3 (persist run) failed: %w", err)
	}

	evals := make([]*domain.GridEvaluation, len(res.Evaluations))
	for i := range res.Evaluations {
		e := res.Evaluations[i]
		e.RunID = run.RunID
		evals[i] = &e
	}
	if err := o.stores.Grid.InsertBulk(ctx, evals); err != nil {
		return nil, fmt.Errorf("phase 3 (persist grid) failed: %w", err)
	}

	o.logger.Info("optimization completed",
		zap.String("run_id", run.RunID),
		zap.Int("combinations", run.Combinations),
		zap.Int("skipped", res.Skipped),
		zap.Float64("performance", run.Summary.Performance),
	)
	return &OptimizationResult{Run: run, Result: res}, nil
}

// VerificationResult pairs the best-combination check with the per-evaluation report.
type VerificationResult struct {
	Run  *verification.RunResult
	Grid *verification.GridReport
}

// VerifyRun replays a persisted run on the configured series.
// The data window must match the one the run was optimized on.
func (o *Orchestrator) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	series, err := o.LoadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RunStore:  o.stores.Runs,
		GridStore: o.stores.Grid,
		Series:    series,
	})

	runResult, err := v.VerifyRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	gridReport, err := v.VerifyGrid(ctx, runID)
	if err != nil {
		return nil, err
	}

	o.logger.Info("verification completed",
		zap.String("run_id", runID),
		zap.Bool("match", runResult.Match),
		zap.Int("evaluations", gridReport.Total),
		zap.Int("divergent", gridReport.Divergent),
	)
	return &VerificationResult{Run: runResult, Grid: gridReport}, nil
}
