package backtest

import (
	"fmt"
	"math"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/strategy"
	"backtest-lab/internal/timeseries"
)

// StubStrategy is a scripted strategy for testing.
// PositionsFunc maps the current parameters and series length to positions.
type StubStrategy struct {
	Name          string
	Params        []float64
	NumParams     int
	PositionsFunc func(params []float64, n int) []float64

	calls int
}

// Compile-time interface check.
var _ strategy.Strategy = (*StubStrategy)(nil)

// NewStubStrategy creates a stub that returns fixed positions regardless of parameters.
func NewStubStrategy(positions []float64) *StubStrategy {
	fixed := append([]float64(nil), positions...)
	return &StubStrategy{
		Name: "STUB",
		PositionsFunc: func(_ []float64, _ int) []float64 {
			return append([]float64(nil), fixed...)
		},
	}
}

// ID returns the strategy identifier including parameters.
func (s *StubStrategy) ID() string {
	return fmt.Sprintf("%s_%v", s.Name, s.Params)
}

// Parameters returns the current parameters.
func (s *StubStrategy) Parameters() []float64 {
	return append([]float64(nil), s.Params...)
}

// SetParameters stores params. NaN or a count mismatch is rejected.
func (s *StubStrategy) SetParameters(params ...float64) error {
	if len(params) != s.NumParams {
		return fmt.Errorf("%w: stub takes %d parameters, got %d", domain.ErrInvalidParameter, s.NumParams, len(params))
	}
	for _, p := range params {
		if math.IsNaN(p) {
			return fmt.Errorf("%w: NaN parameter", domain.ErrInvalidParameter)
		}
	}
	s.Params = append(s.Params[:0], params...)
	return nil
}

// Positions returns scripted positions.
func (s *StubStrategy) Positions(series *timeseries.Series) ([]float64, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	s.calls++
	return s.PositionsFunc(s.Parameters(), series.Len()), nil
}

// Calls returns how many times Positions was invoked.
func (s *StubStrategy) Calls() int {
	return s.calls
}
