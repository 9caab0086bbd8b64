package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/storage/postgres"
)

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version       TEXT PRIMARY KEY,
		applied_at_ms BIGINT NOT NULL
	)`

// RunPostgresMigrations applies pending migrations, each in its own
// transaction together with its schema_migrations row.
// Returns the number of migrations applied.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) (int, error) {
	migrations, err := Load(FS, DialectPostgres)
	if err != nil {
		return 0, err
	}

	if _, err := pool.Exec(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("read applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("read applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	var count int
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := pool.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, applied_at_ms) VALUES ($1, $2)`,
				m.Version, time.Now().UnixMilli())
			return err
		})
		if err != nil {
			return count, fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		count++
	}
	return count, nil
}
