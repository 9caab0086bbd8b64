package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"backtest-lab/internal/config"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/reporting"
)

// Setup opens the configured stores and builds the report presenter.
// The caller closes Stores() when done.
func Setup(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *observability.Metrics) (*Orchestrator, error) {
	presenter, err := reporting.NewPresenter(cfg.Output.Dir, cfg.Output.Formats, m, logger)
	if err != nil {
		return nil, err
	}

	stores, err := OpenStores(ctx, cfg.Storage, m)
	if err != nil {
		return nil, err
	}

	return New(Options{
		Config:    cfg,
		Stores:    stores,
		Presenter: presenter,
		Logger:    logger,
		Metrics:   m,
	}), nil
}
