// Package main runs the configured grid search, replays the best combination
// with reporting and persists the run.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"backtest-lab/internal/config"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/optimize"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/reporting"
)

func optimizeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("workers") {
		cfg.Optimize.Workers = int(cmd.Int("workers"))
	}
	if cmd.Bool("skip-invalid") {
		cfg.Optimize.SkipInvalid = true
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

	var bar *progressbar.ProgressBar
	onProgress := func(p optimize.Progress) {
		if cmd.Bool("quiet") {
			return
		}
		if bar == nil {
			bar = progressbar.Default(int64(p.Total), "grid search")
		}
		bar.Add(1)
	}

	out, err := orch.RunOptimization(ctx, onProgress)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Run)
	}

	report, err := reporting.NewGenerator(orch.Stores().Runs, orch.Stores().Grid).Generate(ctx, out.Run.RunID)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Print(reporting.RenderRunMarkdown(report))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "optimize",
		Usage: "Search the configured parameter grid for the best performing combination",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration",
				Value:   "config.yaml",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent evaluations overriding optimize.workers",
			},
			&cli.BoolFlag{
				Name:  "skip-invalid",
				Usage: "Skip combinations the strategy rejects",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide the progress bar",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the persisted run as JSON instead of Markdown",
			},
		},
		Action: optimizeAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
