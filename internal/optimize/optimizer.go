package optimize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/observability"
)

// Optimizer errors
var (
	ErrNoRunner            = errors.New("optimizer requires a runner")
	ErrNoRunnerFactory     = errors.New("parallel optimizer requires a runner factory")
	ErrNoValidCombinations = errors.New("no valid parameter combination in grid")
)

// Progress is published after every evaluated combination.
type Progress struct {
	Done      int
	Total     int
	Index     int
	Params    []float64
	Summary   domain.PerformanceSummary
	Skipped   bool
	BestIndex int // -1 until a valid combination was seen
	Best      domain.PerformanceSummary
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Options configures an Optimizer.
type Options struct {
	// Runner evaluates combinations in sequential mode and always performs the final replay.
	Runner *backtest.Runner
	// NewRunner builds an independent runner per worker when Workers > 1.
	NewRunner func() (*backtest.Runner, error)
	// Workers is the number of concurrent evaluations. Values below 2 run sequentially.
	Workers int
	// SkipInvalid skips combinations rejected with domain.ErrInvalidParameter instead of failing.
	SkipInvalid bool
	// StrategyType keys the parameter-set IDs of grid evaluations.
	StrategyType string

	Logger     *zap.Logger
	Metrics    *observability.Metrics
	OnProgress ProgressFunc
}

// Result is the outcome of a grid search.
type Result struct {
	BestIndex    int
	BestParams   []float64
	Objective    float64                   // -performance at the best combination
	Summary      domain.PerformanceSummary // from the final replay
	Trades       float64                   // trade count of the final replay
	Combinations int
	Skipped      int
	Evaluations  []domain.GridEvaluation // one per combination, enumeration order
	Duration     time.Duration
}

// Optimizer performs an exhaustive grid search.
type Optimizer struct {
	opts   Options
	logger *zap.Logger
}

// New creates a new Optimizer.
func New(opts Options) *Optimizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{opts: opts, logger: logger}
}

// outcome is one combination's evaluation.
type outcome struct {
	summary domain.PerformanceSummary
	trades  float64
	skipped bool
}

// Run evaluates every combination of ranges, selects the one maximizing
// performance (first in enumeration order on ties) and replays it with reporting.
func (o *Optimizer) Run(ctx context.Context, ranges []domain.ParamRange) (*Result, error) {
	start := time.Now()

	res, err := o.run(ctx, ranges)
	if o.opts.Metrics != nil {
		status, best := "ok", 0.0
		if err != nil {
			status = "error"
		} else {
			best = res.Summary.Performance
		}
		o.opts.Metrics.RecordOptimization(status, time.Since(start).Seconds(), best, time.Now().Unix())
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

func (o *Optimizer) run(ctx context.Context, ranges []domain.ParamRange) (*Result, error) {
	if o.opts.Runner == nil {
		return nil, ErrNoRunner
	}

	grid, err := NewGrid(ranges)
	if err != nil {
		return nil, err
	}

	workers := o.opts.Workers
	if workers > grid.Size() {
		workers = grid.Size()
	}
	if workers > 1 && o.opts.NewRunner == nil {
		return nil, ErrNoRunnerFactory
	}

	o.logger.Info("grid search started",
		zap.String("strategy", o.opts.Runner.Strategy().ID()),
		zap.Int("combinations", grid.Size()),
		zap.Int("workers", max(workers, 1)),
	)
	if o.opts.Metrics != nil {
		o.opts.Metrics.StartGrid(grid.Size())
	}

	tracker := newTracker(grid.Size(), o.opts.OnProgress, o.opts.Metrics)

	var outcomes []outcome
	if workers > 1 {
		outcomes, err = o.runParallel(ctx, grid, workers, tracker)
	} else {
		outcomes, err = o.runSequential(ctx, grid, tracker)
	}
	if err != nil {
		return nil, err
	}

	res := o.reduce(grid, outcomes)
	if res.BestIndex < 0 {
		return nil, fmt.Errorf("%w: %d combinations skipped", ErrNoValidCombinations, res.Skipped)
	}

	// Final replay at the best parameters triggers presentation.
	summary, err := o.opts.Runner.Run(true, res.BestParams...)
	if err != nil {
		return nil, fmt.Errorf("replay best combination %v: %w", res.BestParams, err)
	}
	res.Summary = summary
	if table, err := o.opts.Runner.Engine().LastResult(); err == nil {
		res.Trades = table.Trades
	}

	o.logger.Info("grid search finished",
		zap.Float64s("best_params", res.BestParams),
		zap.Float64("performance", res.Summary.Performance),
		zap.Float64("out_performance", res.Summary.OutPerformance),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// runSequential evaluates combinations one at a time on the primary runner.
func (o *Optimizer) runSequential(ctx context.Context, grid *Grid, tracker *tracker) ([]outcome, error) {
	outcomes := make([]outcome, grid.Size())
	var runErr error
	grid.Each(func(index int, params []float64) bool {
		if err := ctx.Err(); err != nil {
			runErr = err
			return false
		}
		out, err := o.evaluate(o.opts.Runner, index, params)
		if err != nil {
			runErr = err
			return false
		}
		outcomes[index] = out
		tracker.record(index, params, out)
		return true
	})
	return outcomes, runErr
}

// runParallel evaluates combinations on a bounded pool of independent runners.
// Results are stored by index so the reduction does not depend on scheduling.
func (o *Optimizer) runParallel(ctx context.Context, grid *Grid, workers int, tracker *tracker) ([]outcome, error) {
	runners := make([]*backtest.Runner, workers)
	for w := range runners {
		r, err := o.opts.NewRunner()
		if err != nil {
			return nil, fmt.Errorf("create worker runner: %w", err)
		}
		runners[w] = r
	}

	outcomes := make([]outcome, grid.Size())
	indices := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(indices)
		for i := 0; i < grid.Size(); i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case indices <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for _, runner := range runners {
		g.Go(func() error {
			for index := range indices {
				params := grid.At(index)
				out, err := o.evaluate(runner, index, params)
				if err != nil {
					return err
				}
				outcomes[index] = out
				tracker.record(index, params, out)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// evaluate runs one combination without reporting.
func (o *Optimizer) evaluate(runner *backtest.Runner, index int, params []float64) (outcome, error) {
	summary, err := runner.Run(false, params...)
	if err != nil {
		if o.opts.SkipInvalid && errors.Is(err, domain.ErrInvalidParameter) {
			o.logger.Debug("skipping invalid combination", zap.Int("index", index), zap.Float64s("params", params), zap.Error(err))
			return outcome{skipped: true}, nil
		}
		return outcome{}, fmt.Errorf("combination %d %v: %w", index, params, err)
	}

	out := outcome{summary: summary}
	if table, err := runner.Engine().LastResult(); err == nil {
		out.trades = table.Trades
	}
	return out, nil
}

// reduce picks the minimal objective in enumeration order; strict comparison
// keeps the first of equal candidates.
func (o *Optimizer) reduce(grid *Grid, outcomes []outcome) *Result {
	res := &Result{
		BestIndex:    -1,
		Combinations: grid.Size(),
		Evaluations:  make([]domain.GridEvaluation, len(outcomes)),
	}
	for i, out := range outcomes {
		params := grid.At(i)
		res.Evaluations[i] = domain.GridEvaluation{
			Index:       i,
			ParamSetID:  idhash.ComputeParamSetID(o.opts.StrategyType, params),
			Params:      params,
			Performance: out.summary.Performance,
			OutPerf:     out.summary.OutPerformance,
			Trades:      out.trades,
			Skipped:     out.skipped,
		}
		if out.skipped {
			res.Skipped++
			continue
		}

		objective := -out.summary.Performance
		if res.BestIndex < 0 || objective < res.Objective {
			res.BestIndex = i
			res.Objective = objective
			res.BestParams = params
		}
	}
	return res
}

// tracker serializes progress reporting across workers.
type tracker struct {
	mu        sync.Mutex
	total     int
	done      int
	bestIndex int
	best      domain.PerformanceSummary
	notify    ProgressFunc
	metrics   *observability.Metrics
}

func newTracker(total int, notify ProgressFunc, metrics *observability.Metrics) *tracker {
	return &tracker{total: total, bestIndex: -1, notify: notify, metrics: metrics}
}

func (t *tracker) record(index int, params []float64, out outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	if !out.skipped {
		better := t.bestIndex < 0 ||
			out.summary.Performance > t.best.Performance ||
			(out.summary.Performance == t.best.Performance && index < t.bestIndex)
		if better {
			t.bestIndex = index
			t.best = out.summary
		}
	}
	if t.metrics != nil {
		t.metrics.RecordCombination(out.skipped)
	}
	if t.notify != nil {
		t.notify(Progress{
			Done:      t.done,
			Total:     t.total,
			Index:     index,
			Params:    params,
			Summary:   out.summary,
			Skipped:   out.skipped,
			BestIndex: t.bestIndex,
			Best:      t.best,
		})
	}
}
