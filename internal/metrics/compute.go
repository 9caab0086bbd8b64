// Package metrics derives descriptive statistics from an evaluated result table.
package metrics

import (
	"math"
	"sort"

	"backtest-lab/internal/backtest"
)

// TradingDaysPerYear is the default annualization factor for daily data.
const TradingDaysPerYear = 252

// Stats summarizes a result table. Return statistics use net log returns.
type Stats struct {
	Rows   int
	Trades float64

	// Final cumulative values
	BuyAndHold  float64
	Strategy    float64
	StrategyNet float64

	// Return distribution (per period, net)
	MeanReturn   float64
	MedianReturn float64
	P10Return    float64
	P90Return    float64

	// Annualized
	AnnualReturn     float64 // mean * periods
	AnnualVolatility float64 // stddev * sqrt(periods)
	Sharpe           float64 // AnnualReturn / AnnualVolatility, 0 when flat

	// Risk
	MaxDrawdown          float64 // worst relative peak-to-trough of the net curve
	MaxConsecutiveLosses int

	// Activity
	Exposure float64 // share of rows holding a non-zero position
	HitRate  float64 // share of invested rows with a positive net return
}

// Compute calculates Stats. periodsPerYear <= 0 uses TradingDaysPerYear.
func Compute(table *backtest.ResultTable, periodsPerYear int) *Stats {
	if table == nil || len(table.Rows) == 0 {
		return &Stats{}
	}
	if periodsPerYear <= 0 {
		periodsPerYear = TradingDaysPerYear
	}

	n := len(table.Rows)
	returns := make([]float64, n)
	curve := make([]float64, n)
	invested, wins := 0, 0
	for i, row := range table.Rows {
		returns[i] = row.StrategyNet
		curve[i] = row.CStrategyNet
		if row.Position != 0 {
			invested++
			if row.StrategyNet > 0 {
				wins++
			}
		}
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	final := table.Final()

	stats := &Stats{
		Rows:   n,
		Trades: table.Trades,

		BuyAndHold:  final.CReturns,
		Strategy:    final.CStrategy,
		StrategyNet: final.CStrategyNet,

		MeanReturn:   mean,
		MedianReturn: computePercentile(sorted, 0.50),
		P10Return:    computePercentile(sorted, 0.10),
		P90Return:    computePercentile(sorted, 0.90),

		AnnualReturn:     mean * float64(periodsPerYear),
		AnnualVolatility: stddev * math.Sqrt(float64(periodsPerYear)),

		MaxDrawdown:          computeMaxDrawdown(curve),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(returns),

		Exposure: computeRate(invested, n),
		HitRate:  computeRate(wins, invested),
	}
	if stats.AnnualVolatility > 0 {
		stats.Sharpe = stats.AnnualReturn / stats.AnnualVolatility
	}
	return stats
}

// computeRate calculates part / total, 0 for an empty total.
func computeRate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst relative decline from a running peak
// of a cumulative curve that starts at 1.
func computeMaxDrawdown(curve []float64) float64 {
	peak := 1.0
	maxDrawdown := 0.0

	for _, v := range curve {
		if v > peak {
			peak = v
		}
		drawdown := (peak - v) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds longest streak of negative returns.
func computeMaxConsecutiveLosses(returns []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, r := range returns {
		if r < 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
