package postgres

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Tests run from the package directory; the migrations package cannot be
// imported here without a cycle, so the schema is read from disk.
var schemaFS = os.DirFS("../migrations/postgres")

// setupTestDB starts a PostgreSQL container with the schema applied.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("backtest"),
		postgres.WithUsername("backtest"),
		postgres.WithPassword("backtest"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "connection string")

	pool, err := NewPool(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err, "create pool")

	files, err := fs.Glob(schemaFS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no schema files found")
	for _, name := range files { // Glob returns names sorted
		sql, err := fs.ReadFile(schemaFS, name)
		require.NoError(t, err, "read %s", name)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", name)
	}

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}
