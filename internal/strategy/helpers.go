package strategy

import (
	"fmt"
	"math"

	"backtest-lab/internal/domain"
)

// integralTolerance absorbs float drift from stepped grids (e.g. 0.1 steps).
const integralTolerance = 1e-9

// windowParam converts a parameter to a positive integer window.
func windowParam(name string, v float64, minimum int) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be finite, got %v", domain.ErrInvalidParameter, name, v)
	}
	rounded := math.Round(v)
	if math.Abs(v-rounded) > integralTolerance {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", domain.ErrInvalidParameter, name, v)
	}
	if int(rounded) < minimum {
		return 0, fmt.Errorf("%w: %s must be >= %d, got %v", domain.ErrInvalidParameter, name, minimum, v)
	}
	return int(rounded), nil
}

// expectParams checks parameter count.
func expectParams(strategyType string, params []float64, n int) error {
	if len(params) != n {
		return fmt.Errorf("%w: %s takes %d parameters, got %d", domain.ErrInvalidParameter, strategyType, n, len(params))
	}
	return nil
}

// nanSlice returns a slice of n NaN values.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean is the trailing mean over window; the first window-1 values are NaN.
// Any NaN input inside the window yields NaN.
func rollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - window + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// rollingStd is the trailing sample standard deviation (n-1 denominator).
func rollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	means := rollingMean(values, window)
	for i := window - 1; i < len(values); i++ {
		sumSq := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := values[j] - means[i]
			sumSq += d * d
		}
		out[i] = math.Sqrt(sumSq / float64(window-1))
	}
	return out
}

// ema is the recursive exponential average with alpha = 2/(span+1), seeded
// with the first value. Values before minPeriods-1 are NaN.
func ema(values []float64, span, minPeriods int) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	avg := values[0]
	for i, v := range values {
		if i > 0 {
			avg = alpha*v + (1-alpha)*avg
		}
		if i >= minPeriods-1 {
			out[i] = avg
		}
	}
	return out
}

// sign returns -1, 0 or +1; NaN stays NaN.
func sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// crossoverPositions is +1 where fast > slow, -1 otherwise, NaN where either is undefined.
func crossoverPositions(fast, slow []float64) []float64 {
	out := nanSlice(len(fast))
	for i := range fast {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			continue
		}
		if fast[i] > slow[i] {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}
