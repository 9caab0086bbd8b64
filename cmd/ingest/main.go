// Package main loads a CSV or Parquet price file into a price series store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"backtest-lab/internal/config"
	"backtest-lab/internal/dataio"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/storage"
)

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := logging.New(cmd.String("log-level"), cmd.String("log-format"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	path := cmd.String("file")
	symbol := cmd.String("symbol")

	points, err := dataio.LoadFile(path, dataio.CSVOptions{
		Symbol:          symbol,
		TimestampColumn: cmd.String("timestamp-column"),
		PriceColumn:     cmd.String("price-column"),
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	logger.Info("file loaded", zap.String("path", path), zap.String("symbol", symbol), zap.Int("points", len(points)))

	if export := cmd.String("export-parquet"); export != "" {
		if err := dataio.WriteParquetFile(export, points); err != nil {
			return fmt.Errorf("export parquet: %w", err)
		}
		logger.Info("parquet exported", zap.String("path", export))
	}

	storageCfg := config.StorageConfig{
		Backend:       cmd.String("backend"),
		PostgresDSN:   cmd.String("postgres-dsn"),
		ClickhouseDSN: cmd.String("clickhouse-dsn"),
	}
	if storageCfg.Backend == config.BackendMemory {
		logger.Warn("memory backend selected, points are discarded on exit")
	}

	stores, err := orchestrator.OpenStores(ctx, storageCfg, observability.DefaultMetrics)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.Close()

	if err := stores.Prices.InsertBulk(ctx, points); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("%s already holds some of these observations: %w", storageCfg.Backend, err)
		}
		return fmt.Errorf("insert prices: %w", err)
	}

	logger.Info("ingestion completed",
		zap.String("backend", storageCfg.Backend),
		zap.String("symbol", symbol),
		zap.Int("points", len(points)),
	)
	return nil
}

func main() {
	// .env values do not override the environment.
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}

	cmd := &cli.Command{
		Name:  "ingest",
		Usage: "Load a price file into a price series store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "CSV or Parquet price file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Instrument symbol",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "timestamp-column",
				Usage: "CSV timestamp column",
				Value: dataio.DefaultTimestampColumn,
			},
			&cli.StringFlag{
				Name:  "price-column",
				Usage: "CSV price column, falls back to a column named after the symbol",
				Value: dataio.DefaultPriceColumn,
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Price store: memory, postgres or clickhouse",
				Value: config.BackendPostgres,
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars(config.EnvPostgresDSN),
			},
			&cli.StringFlag{
				Name:    "clickhouse-dsn",
				Usage:   "ClickHouse connection string",
				Sources: cli.EnvVars(config.EnvClickhouseDSN),
			},
			&cli.StringFlag{
				Name:  "export-parquet",
				Usage: "Also write the loaded points to this Parquet file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars(config.EnvLogLevel),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "console",
			},
		},
		Action: ingestAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
