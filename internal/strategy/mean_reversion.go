package strategy

import (
	"fmt"
	"math"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/timeseries"
)

// MeanReversionStrategy trades Bollinger-style bands around a simple moving average:
// short above SMA+Deviation*std, long below SMA-Deviation*std, flat when price
// crosses the SMA, otherwise hold the previous position.
type MeanReversionStrategy struct {
	Window    int
	Deviation float64 // band width in standard deviations
}

// Compile-time interface check.
var _ Strategy = (*MeanReversionStrategy)(nil)

// NewMeanReversionStrategy creates a validated MeanReversionStrategy.
func NewMeanReversionStrategy(window int, deviation float64) (*MeanReversionStrategy, error) {
	s := &MeanReversionStrategy{}
	if err := s.SetParameters(float64(window), deviation); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the strategy identifier including parameters.
func (s *MeanReversionStrategy) ID() string {
	return fmt.Sprintf("MEAN_REVERSION_%d_%g", s.Window, s.Deviation)
}

// Parameters returns [window, deviation].
func (s *MeanReversionStrategy) Parameters() []float64 {
	return []float64{float64(s.Window), s.Deviation}
}

// SetParameters accepts [window, deviation] with window >= 2 and deviation > 0.
func (s *MeanReversionStrategy) SetParameters(params ...float64) error {
	if err := expectParams(domain.StrategyTypeMeanReversion, params, 2); err != nil {
		return err
	}
	window, err := windowParam("window", params[0], 2)
	if err != nil {
		return err
	}
	dev := params[1]
	if math.IsNaN(dev) || math.IsInf(dev, 0) || dev <= 0 {
		return fmt.Errorf("%w: deviation must be positive, got %v", domain.ErrInvalidParameter, dev)
	}
	s.Window, s.Deviation = window, dev
	return nil
}

// Positions returns -1, 0 or +1 for every row. Rows before the band exists are flat.
func (s *MeanReversionStrategy) Positions(series *timeseries.Series) ([]float64, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	prices := series.Prices
	sma := rollingMean(prices, s.Window)
	std := rollingStd(prices, s.Window)

	out := make([]float64, len(prices))
	current := 0.0
	prevDistance := math.NaN()
	for i, p := range prices {
		if math.IsNaN(sma[i]) {
			out[i] = current
			continue
		}
		distance := p - sma[i]
		switch {
		case !math.IsNaN(prevDistance) && distance*prevDistance < 0:
			current = 0
		case p < sma[i]-s.Deviation*std[i]:
			current = 1
		case p > sma[i]+s.Deviation*std[i]:
			current = -1
		}
		out[i] = current
		prevDistance = distance
	}
	return out, nil
}
