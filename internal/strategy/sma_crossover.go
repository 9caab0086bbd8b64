package strategy

import (
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/timeseries"
)

// SMACrossoverStrategy goes long while the short simple moving average is above
// the long one and short otherwise.
type SMACrossoverStrategy struct {
	Short int // shorter window, observations
	Long  int // longer window, observations
}

// Compile-time interface check.
var _ Strategy = (*SMACrossoverStrategy)(nil)

// NewSMACrossoverStrategy creates a validated SMACrossoverStrategy.
func NewSMACrossoverStrategy(short, long int) (*SMACrossoverStrategy, error) {
	s := &SMACrossoverStrategy{}
	if err := s.SetParameters(float64(short), float64(long)); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the strategy identifier including parameters.
func (s *SMACrossoverStrategy) ID() string {
	return fmt.Sprintf("SMA_CROSSOVER_%d_%d", s.Short, s.Long)
}

// Parameters returns [short, long].
func (s *SMACrossoverStrategy) Parameters() []float64 {
	return []float64{float64(s.Short), float64(s.Long)}
}

// SetParameters accepts [short, long] with 0 < short < long.
func (s *SMACrossoverStrategy) SetParameters(params ...float64) error {
	short, long, err := crossoverWindows(domain.StrategyTypeSMACrossover, params)
	if err != nil {
		return err
	}
	s.Short, s.Long = short, long
	return nil
}

// Positions returns +1/-1 once the long window is filled, NaN before.
func (s *SMACrossoverStrategy) Positions(series *timeseries.Series) ([]float64, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	return crossoverPositions(
		rollingMean(series.Prices, s.Short),
		rollingMean(series.Prices, s.Long),
	), nil
}

// crossoverWindows validates a [short, long] window pair.
func crossoverWindows(strategyType string, params []float64) (int, int, error) {
	if err := expectParams(strategyType, params, 2); err != nil {
		return 0, 0, err
	}
	short, err := windowParam("short window", params[0], 1)
	if err != nil {
		return 0, 0, err
	}
	long, err := windowParam("long window", params[1], 1)
	if err != nil {
		return 0, 0, err
	}
	if short >= long {
		return 0, 0, fmt.Errorf("%w: short window %d must be less than long window %d",
			domain.ErrInvalidParameter, short, long)
	}
	return short, long, nil
}
