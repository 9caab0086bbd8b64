// Package main serves health, metrics, status and the optimization progress
// stream for the configured grid search.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"backtest-lab/internal/api"
	"backtest-lab/internal/config"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/orchestrator"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
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

	srv := api.NewServer(orch, prometheus.DefaultGatherer, logger.Logger)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutdown complete", zap.String("addr", cfg.Server.Addr))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "server",
		Usage: "Serve /health, /metrics, /status and /ws/optimize",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address overriding server.addr",
			},
		},
		Action: serveAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
