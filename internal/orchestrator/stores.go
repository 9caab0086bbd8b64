package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backtest-lab/internal/config"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/instrumented"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
	"backtest-lab/internal/storage/sqlite"
)

// Stores groups the stores used by a run.
type Stores struct {
	Prices storage.PriceSeriesStore
	Runs   storage.RunStore
	Grid   storage.GridResultStore

	closers []func() error
}

// MemoryStores returns in-memory stores.
func MemoryStores() *Stores {
	return &Stores{
		Prices: memory.NewPriceSeriesStore(),
		Runs:   memory.NewRunStore(),
		Grid:   memory.NewGridResultStore(),
	}
}

// OpenStores connects the configured backends and applies migrations.
// Prices use cfg.Backend. Runs use SQLite, then Postgres, then memory.
// Grid evaluations use ClickHouse when a DSN is set, memory otherwise.
// When m is non-nil every store records query metrics.
func OpenStores(ctx context.Context, cfg config.StorageConfig, m *observability.Metrics) (*Stores, error) {
	s := MemoryStores()
	names := map[string]string{"prices": config.BackendMemory, "runs": config.BackendMemory, "grid": config.BackendMemory}

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		var err error
		pool, err = pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithConnectTimeout(10*time.Second))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })

		if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.Runs = pgstore.NewRunStore(pool)
		names["runs"] = config.BackendPostgres
	}

	var conn *chstore.Conn
	if cfg.ClickhouseDSN != "" {
		var err error
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		s.Grid = chstore.NewGridResultStore(conn)
		names["grid"] = config.BackendClickhouse
	}

	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Runs = sqlite.NewRunStore(db)
		names["runs"] = "sqlite"
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		if pool == nil {
			s.Close()
			return nil, fmt.Errorf("%w: postgres backend without dsn", storage.ErrInvalidInput)
		}
		s.Prices = pgstore.NewPriceSeriesStore(pool)
		names["prices"] = config.BackendPostgres
	case config.BackendClickhouse:
		if conn == nil {
			s.Close()
			return nil, fmt.Errorf("%w: clickhouse backend without dsn", storage.ErrInvalidInput)
		}
		s.Prices = chstore.NewPriceSeriesStore(conn)
		names["prices"] = config.BackendClickhouse
	}

	if m != nil {
		s.Prices = instrumented.NewPriceSeriesStore(s.Prices, names["prices"], m)
		s.Runs = instrumented.NewRunStore(s.Runs, names["runs"], m)
		s.Grid = instrumented.NewGridResultStore(s.Grid, names["grid"], m)
	}
	return s, nil
}

// Close releases every opened connection.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
