package migrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	chstore "backtest-lab/internal/storage/clickhouse"
)

// ErrUnsupportedStatement is returned for migrations the statement splitter cannot handle.
var ErrUnsupportedStatement = errors.New("unsupported migration statement")

const createClickhouseVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version       String,
		applied_at_ms Int64
	) ENGINE = MergeTree() ORDER BY version`

// RunClickhouseMigrations creates the DSN's database if needed and applies
// pending migrations. The returned connection is bound to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	migrations, err := Load(FS, DialectClickhouse)
	if err != nil {
		return nil, err
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName))
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if err := applyClickhouse(ctx, conn, migrations); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func applyClickhouse(ctx context.Context, conn *chstore.Conn, migrations []Migration) error {
	if err := conn.Exec(ctx, createClickhouseVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var versions []string
	if err := conn.Select(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		stmts, err := splitStatements(m.SQL)
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Version, err)
		}
		// The driver executes one statement per Exec, so there is no transaction;
		// statements must be idempotent.
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
		if err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, applied_at_ms) VALUES (?, ?)`,
			m.Version, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if opts.Auth.Database == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	return opts.Auth.Database, nil
}

// splitStatements drops -- comment lines and splits on semicolons.
// Semicolons inside quoted strings are rejected.
func splitStatements(sql string) ([]string, error) {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return nil, fmt.Errorf("%w: semicolon inside string literal", ErrUnsupportedStatement)
			}
		}
	}

	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
			kept = append(kept, line)
		}
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}
