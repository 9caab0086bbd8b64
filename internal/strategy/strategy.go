package strategy

import (
	"backtest-lab/internal/timeseries"
)

// Strategy produces a position signal from a price series.
type Strategy interface {
	// ID returns strategy identifier (includes parameters).
	ID() string

	// Parameters returns the current parameter vector.
	Parameters() []float64

	// SetParameters replaces the parameter vector.
	// Returns domain.ErrInvalidParameter (wrapped) and leaves state unchanged on bad input.
	SetParameters(params ...float64) error

	// Positions returns one position per observation, aligned with the series.
	// position[i] uses only prices up to and including i. NaN marks warm-up rows.
	Positions(series *timeseries.Series) ([]float64, error)
}
