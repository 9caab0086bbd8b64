// Package main runs a single reported evaluation of the configured strategy.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"backtest-lab/internal/config"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/reporting"
)

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if params := cmd.FloatSlice("params"); len(params) > 0 {
		cfg.Strategy.Params = params
	}
	if cmd.IsSet("cost-pct") {
		cfg.Trading.CostPct = cmd.Float("cost-pct")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	orch, err := orchestrator.Setup(ctx, cfg, logger.Logger, observability.DefaultMetrics)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer orch.Stores().Close()

	result, err := orch.RunBacktest(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	logger.Info("backtest completed",
		zap.String("title", result.Title),
		zap.Float64("performance", result.Summary.Performance),
		zap.Float64("out_performance", result.Summary.OutPerformance),
	)

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Title   string    `json:"title"`
			Params  []float64 `json:"params"`
			Summary any       `json:"summary"`
			Stats   any       `json:"stats"`
		}{result.Title, result.Params, result.Summary, result.Stats})
	}

	fmt.Print(reporting.RenderMarkdown(result.Table, result.Title, result.Stats))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Evaluate the configured strategy once and write its reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration",
				Value:    "config.yaml",
				Required: false,
			},
			&cli.FloatSliceFlag{
				Name:    "params",
				Aliases: []string{"p"},
				Usage:   "Strategy parameters overriding strategy.params",
			},
			&cli.FloatFlag{
				Name:  "cost-pct",
				Usage: "Trading cost in percent overriding trading.cost_pct",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the summary as JSON instead of Markdown",
			},
		},
		Action: backtestAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
