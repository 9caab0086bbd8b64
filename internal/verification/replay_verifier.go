package verification

import (
	"context"
	"errors"
	"fmt"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/strategy"
	"backtest-lab/internal/timeseries"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrSymbolMismatch is returned when the series belongs to another symbol than the run.
	ErrSymbolMismatch = errors.New("series symbol does not match run")
)

// ReplayVerifier re-evaluates stored runs on a series.
// Each replay uses the run's own strategy type and cost, not the current configuration.
type ReplayVerifier struct {
	runStore  storage.RunStore
	gridStore storage.GridResultStore
	series    *timeseries.Series
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore  storage.RunStore
	GridStore storage.GridResultStore // optional, required by VerifyGrid
	Series    *timeseries.Series
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:  opts.RunStore,
		gridStore: opts.GridStore,
		series:    opts.Series,
	}
}

// VerifyRun replays the best combination of a run and compares the summary and trade count.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*RunResult, error) {
	// 1. Load stored run
	run, runner, err := v.load(ctx, runID)
	if err != nil {
		return nil, err
	}

	// 2. Replay best combination
	summary, err := runner.Run(false, run.BestParams...)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}
	table, err := runner.Engine().LastResult()
	if err != nil {
		return nil, err
	}

	// 3. Compare results
	divergences := CompareSummaries(run.Summary, summary)
	if !floatEquals(run.Trades, table.Trades) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Trades",
			Expected: run.Trades,
			Actual:   table.Trades,
		})
	}

	return &RunResult{
		RunID:               runID,
		Match:               len(divergences) == 0,
		Divergences:         divergences,
		StoredPerformance:   run.Summary.Performance,
		ReplayedPerformance: summary.Performance,
	}, nil
}

// VerifyGrid replays every stored evaluation of a run. Combinations stored as
// skipped must still be rejected as invalid parameters.
func (v *ReplayVerifier) VerifyGrid(ctx context.Context, runID string) (*GridReport, error) {
	if v.gridStore == nil {
		return nil, fmt.Errorf("%w: no grid store", storage.ErrInvalidInput)
	}

	run, runner, err := v.load(ctx, runID)
	if err != nil {
		return nil, err
	}

	evals, err := v.gridStore.GetByRunID(ctx, run.RunID)
	if err != nil {
		return nil, err
	}

	report := &GridReport{RunID: runID, BestIndex: -1}
	var best float64
	for _, stored := range evals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		replayed, err := replayEvaluation(runner, stored)
		if err != nil {
			return nil, err
		}

		divergences := CompareEvaluations(stored, replayed)
		report.Total++
		if len(divergences) == 0 {
			report.Matched++
		} else {
			report.Divergent++
		}
		report.Results = append(report.Results, EvaluationResult{
			Index:       stored.Index,
			Params:      stored.Params,
			Match:       len(divergences) == 0,
			Divergences: divergences,
		})

		// Strict comparison keeps the first of equal performers.
		if !replayed.Skipped && (report.BestIndex < 0 || replayed.Performance > best) {
			report.BestIndex = replayed.Index
			report.BestParams = replayed.Params
			best = replayed.Performance
		}
	}

	return report, nil
}

// load fetches the run and builds a runner matching its strategy and cost.
func (v *ReplayVerifier) load(ctx context.Context, runID string) (*domain.OptimizationRun, *backtest.Runner, error) {
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	if run.Symbol != v.series.Symbol {
		return nil, nil, fmt.Errorf("%w: run %s, series %s", ErrSymbolMismatch, run.Symbol, v.series.Symbol)
	}

	s, err := strategy.FromConfig(domain.StrategyConfig{StrategyType: run.StrategyType})
	if err != nil {
		return nil, nil, err
	}
	return run, backtest.NewRunner(s, v.series, backtest.NewEngine(run.CostPct)), nil
}

func replayEvaluation(runner *backtest.Runner, stored *domain.GridEvaluation) (*domain.GridEvaluation, error) {
	replayed := &domain.GridEvaluation{
		RunID:  stored.RunID,
		Index:  stored.Index,
		Params: stored.Params,
	}

	summary, err := runner.Run(false, stored.Params...)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) {
			replayed.Skipped = true
			return replayed, nil
		}
		return nil, fmt.Errorf("replay evaluation %d %v: %w", stored.Index, stored.Params, err)
	}

	replayed.Performance = summary.Performance
	replayed.OutPerf = summary.OutPerformance
	if table, err := runner.Engine().LastResult(); err == nil {
		replayed.Trades = table.Trades
	}
	return replayed, nil
}
