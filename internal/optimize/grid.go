// Package optimize implements the exhaustive grid search over strategy parameters.
package optimize

import (
	"errors"
	"fmt"
	"math"

	"backtest-lab/internal/domain"
)

// Grid errors
var (
	ErrInvalidRange = errors.New("invalid parameter range")
	ErrGridTooLarge = errors.New("parameter grid too large")
)

// maxGridSize bounds the number of combinations a Grid can index.
const maxGridSize = 1 << 31

// rangeTolerance keeps float steps from producing a value equal to Stop.
const rangeTolerance = 1e-9

// Values expands a range into start, start+step, ... strictly below stop.
func Values(r domain.ParamRange) ([]float64, error) {
	for _, v := range []float64{r.Start, r.Stop, r.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite bound in %+v", ErrInvalidRange, r)
		}
	}
	if r.Step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive, got %v", ErrInvalidRange, r.Step)
	}
	if r.Start >= r.Stop {
		return nil, fmt.Errorf("%w: start %v must be below stop %v", ErrInvalidRange, r.Start, r.Stop)
	}

	count := (r.Stop - r.Start) / r.Step
	if math.IsNaN(count) || math.IsInf(count, 0) {
		return nil, fmt.Errorf("%w: span of %+v is not representable", ErrInvalidRange, r)
	}
	if count > maxGridSize {
		return nil, fmt.Errorf("%w: %g values on one axis", ErrGridTooLarge, count)
	}
	// Start < Stop always yields Start itself.
	n := max(int(math.Ceil(count-rangeTolerance)), 1)
	out := make([]float64, n)
	for k := range out {
		out[k] = r.Start + float64(k)*r.Step
	}
	return out, nil
}

// Grid is the Cartesian product of parameter ranges.
// Enumeration is lexicographic: the last axis varies fastest.
type Grid struct {
	axes [][]float64
	size int
}

// NewGrid expands every range. Zero ranges produce a grid with one empty combination.
func NewGrid(ranges []domain.ParamRange) (*Grid, error) {
	g := &Grid{size: 1}
	for i, r := range ranges {
		values, err := Values(r)
		if err != nil {
			return nil, fmt.Errorf("axis %d: %w", i, err)
		}
		if g.size > maxGridSize/len(values) {
			return nil, fmt.Errorf("%w: more than %d combinations", ErrGridTooLarge, maxGridSize)
		}
		g.size *= len(values)
		g.axes = append(g.axes, values)
	}
	return g, nil
}

// Size returns the number of combinations.
func (g *Grid) Size() int {
	return g.size
}

// Dimensions returns the number of axes.
func (g *Grid) Dimensions() int {
	return len(g.axes)
}

// At returns the combination at enumeration index.
func (g *Grid) At(index int) []float64 {
	params := make([]float64, len(g.axes))
	for axis := len(g.axes) - 1; axis >= 0; axis-- {
		n := len(g.axes[axis])
		params[axis] = g.axes[axis][index%n]
		index /= n
	}
	return params
}

// Each visits every combination in enumeration order until fn returns false.
func (g *Grid) Each(fn func(index int, params []float64) bool) {
	params := make([]float64, len(g.axes))
	index := 0
	var walk func(axis int) bool
	walk = func(axis int) bool {
		if axis == len(g.axes) {
			ok := fn(index, append([]float64(nil), params...))
			index++
			return ok
		}
		for _, v := range g.axes[axis] {
			params[axis] = v
			if !walk(axis + 1) {
				return false
			}
		}
		return true
	}
	walk(0)
}
