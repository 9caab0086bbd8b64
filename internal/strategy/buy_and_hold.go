package strategy

import (
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/timeseries"
)

// BuyAndHoldStrategy is the default variant: always long, no parameters.
// Its strategy curve reproduces the buy-and-hold baseline.
type BuyAndHoldStrategy struct{}

// Compile-time interface check.
var _ Strategy = (*BuyAndHoldStrategy)(nil)

// NewBuyAndHoldStrategy creates a BuyAndHoldStrategy.
func NewBuyAndHoldStrategy() *BuyAndHoldStrategy {
	return &BuyAndHoldStrategy{}
}

// ID returns the strategy identifier.
func (s *BuyAndHoldStrategy) ID() string {
	return "BUY_AND_HOLD"
}

// Parameters returns an empty vector.
func (s *BuyAndHoldStrategy) Parameters() []float64 {
	return []float64{}
}

// SetParameters accepts only the empty vector.
func (s *BuyAndHoldStrategy) SetParameters(params ...float64) error {
	return expectParams(domain.StrategyTypeBuyAndHold, params, 0)
}

// Positions returns +1 for every row.
func (s *BuyAndHoldStrategy) Positions(series *timeseries.Series) ([]float64, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", domain.ErrData)
	}
	out := make([]float64, series.Len())
	for i := range out {
		out[i] = 1
	}
	return out, nil
}
