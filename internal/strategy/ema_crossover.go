package strategy

import (
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/timeseries"
)

// EMACrossoverStrategy is the exponential-average counterpart of SMACrossoverStrategy.
// Averages use span semantics and become defined after Long observations.
type EMACrossoverStrategy struct {
	Short int // shorter span
	Long  int // longer span
}

// Compile-time interface check.
var _ Strategy = (*EMACrossoverStrategy)(nil)

// NewEMACrossoverStrategy creates a validated EMACrossoverStrategy.
func NewEMACrossoverStrategy(short, long int) (*EMACrossoverStrategy, error) {
	s := &EMACrossoverStrategy{}
	if err := s.SetParameters(float64(short), float64(long)); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the strategy identifier including parameters.
func (s *EMACrossoverStrategy) ID() string {
	return fmt.Sprintf("EMA_CROSSOVER_%d_%d", s.Short, s.Long)
}

// Parameters returns [short, long].
func (s *EMACrossoverStrategy) Parameters() []float64 {
	return []float64{float64(s.Short), float64(s.Long)}
}

// SetParameters accepts [short, long] with 0 < short < long.
func (s *EMACrossoverStrategy) SetParameters(params ...float64) error {
	short, long, err := crossoverWindows(domain.StrategyTypeEMACrossover, params)
	if err != nil {
		return err
	}
	s.Short, s.Long = short, long
	return nil
}

// Positions returns +1/-1 once Long observations are seen, NaN before.
func (s *EMACrossoverStrategy) Positions(series *timeseries.Series) ([]float64, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	return crossoverPositions(
		ema(series.Prices, s.Short, s.Long),
		ema(series.Prices, s.Long, s.Long),
	), nil
}
