package strategy

import (
	"errors"
	"fmt"
	"strings"

	"backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates parameters per strategy type. An empty Params slice leaves the
// variant's defaults in place so a grid search can set them later.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	var s Strategy
	switch strings.ToLower(cfg.StrategyType) {
	case domain.StrategyTypeSMACrossover:
		s = &SMACrossoverStrategy{Short: 42, Long: 252}
	case domain.StrategyTypeEMACrossover:
		s = &EMACrossoverStrategy{Short: 12, Long: 26}
	case domain.StrategyTypeMomentum:
		s = &MomentumStrategy{Window: 3}
	case domain.StrategyTypeMeanReversion:
		s = &MeanReversionStrategy{Window: 30, Deviation: 2}
	case domain.StrategyTypeBuyAndHold, "":
		s = &BuyAndHoldStrategy{}
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownStrategyType, cfg.StrategyType, strings.Join(domain.StrategyTypes, ", "))
	}

	if len(cfg.Params) == 0 {
		return s, nil
	}
	if err := s.SetParameters(cfg.Params...); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFactory returns a constructor producing independent instances for cfg.
// Used where each worker needs its own mutable strategy.
func NewFactory(cfg domain.StrategyConfig) (func() (Strategy, error), error) {
	if _, err := FromConfig(cfg); err != nil {
		return nil, err
	}
	params := append([]float64(nil), cfg.Params...)
	return func() (Strategy, error) {
		return FromConfig(domain.StrategyConfig{StrategyType: cfg.StrategyType, Params: params})
	}, nil
}
