package strategy

import (
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/timeseries"
)

// MomentumStrategy follows the sign of the mean log return over the last Window steps.
type MomentumStrategy struct {
	Window int
}

// Compile-time interface check.
var _ Strategy = (*MomentumStrategy)(nil)

// NewMomentumStrategy creates a validated MomentumStrategy.
func NewMomentumStrategy(window int) (*MomentumStrategy, error) {
	s := &MomentumStrategy{}
	if err := s.SetParameters(float64(window)); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the strategy identifier including parameters.
func (s *MomentumStrategy) ID() string {
	return fmt.Sprintf("MOMENTUM_%d", s.Window)
}

// Parameters returns [window].
func (s *MomentumStrategy) Parameters() []float64 {
	return []float64{float64(s.Window)}
}

// SetParameters accepts [window] with window >= 1.
func (s *MomentumStrategy) SetParameters(params ...float64) error {
	if err := expectParams(domain.StrategyTypeMomentum, params, 1); err != nil {
		return err
	}
	window, err := windowParam("window", params[0], 1)
	if err != nil {
		return err
	}
	s.Window = window
	return nil
}

// Positions returns -1, 0 or +1. The first Window rows are NaN because the
// first return is undefined.
func (s *MomentumStrategy) Positions(series *timeseries.Series) ([]float64, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	means := rollingMean(series.Returns, s.Window)
	out := make([]float64, len(means))
	for i, m := range means {
		out[i] = sign(m)
	}
	return out, nil
}
