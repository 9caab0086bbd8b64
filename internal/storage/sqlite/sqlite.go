// Package sqlite stores optimization runs in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS optimization_runs (
	run_id          TEXT    PRIMARY KEY,
	grid_id         TEXT    NOT NULL,
	symbol          TEXT    NOT NULL,
	strategy_type   TEXT    NOT NULL,
	cost_pct        REAL    NOT NULL,
	ranges          TEXT    NOT NULL,
	best_params     TEXT    NOT NULL,
	performance     REAL    NOT NULL,
	out_performance REAL    NOT NULL,
	combinations    INTEGER NOT NULL,
	trades          REAL    NOT NULL,
	started_at_ms   INTEGER NOT NULL,
	finished_at_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_optimization_runs_symbol ON optimization_runs (symbol, started_at_ms);
`

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &DB{DB: db}, nil
}

// isDuplicateKeyError checks if error is a primary key or unique violation.
func isDuplicateKeyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
