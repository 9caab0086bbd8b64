// Package timeseries prepares ordered price observations for vectorized evaluation.
package timeseries

import (
	"fmt"
	"math"

	"backtest-lab/internal/domain"
)

// Series is an ordered, time-indexed price table with derived log returns.
// All slices are aligned index-for-index. Immutable after Prepare.
type Series struct {
	Symbol     string
	Timestamps []int64   // Unix ms, strictly increasing
	Prices     []float64 // strictly positive
	Returns    []float64 // Returns[0] is NaN
}

// Prepare validates points and computes log returns.
// Points must already be in strictly increasing timestamp order.
// Returns domain.ErrData for fewer than 2 observations, non-positive prices
// or non-monotonic timestamps.
func Prepare(points []*domain.PricePoint) (*Series, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations, got %d", domain.ErrData, len(points))
	}

	s := &Series{
		Timestamps: make([]int64, len(points)),
		Prices:     make([]float64, len(points)),
	}

	for i, p := range points {
		if p == nil {
			return nil, fmt.Errorf("%w: nil observation at index %d", domain.ErrData, i)
		}
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return nil, fmt.Errorf("%w: invalid price %v at index %d", domain.ErrData, p.Price, i)
		}
		if i > 0 && p.TimestampMs <= points[i-1].TimestampMs {
			return nil, fmt.Errorf("%w: timestamps not strictly increasing at index %d (%d after %d)",
				domain.ErrData, i, p.TimestampMs, points[i-1].TimestampMs)
		}
		s.Timestamps[i] = p.TimestampMs
		s.Prices[i] = p.Price
	}
	s.Symbol = points[0].Symbol

	s.Returns = LogReturns(s.Prices)
	return s, nil
}

// LogReturns computes ln(p[i]/p[i-1]). The first element is NaN.
func LogReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(prices); i++ {
		out[i] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Prices)
}

// Points returns the observations as domain points, suitable for storage.
func (s *Series) Points() []*domain.PricePoint {
	out := make([]*domain.PricePoint, len(s.Prices))
	for i := range s.Prices {
		out[i] = &domain.PricePoint{
			Symbol:      s.Symbol,
			TimestampMs: s.Timestamps[i],
			Price:       s.Prices[i],
		}
	}
	return out
}

// Slice returns a prepared sub-series within [startMs, endMs] (inclusive).
// Returns are recomputed, so the first row of the window is undefined again.
func (s *Series) Slice(startMs, endMs int64) (*Series, error) {
	var points []*domain.PricePoint
	for _, p := range s.Points() {
		if p.TimestampMs >= startMs && p.TimestampMs <= endMs {
			points = append(points, p)
		}
	}
	return Prepare(points)
}
