package clickhouse

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Read from disk; importing the migrations package here would be a cycle.
var schemaFS = os.DirFS("../migrations/clickhouse")

// setupTestDB starts a ClickHouse container with the schema applied.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping clickhouse integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.8-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_DB":       "backtest",
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready for connections").WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://default:@%s/backtest", endpoint))
	require.NoError(t, err)
	require.Equal(t, "backtest", conn.Database())

	files, err := fs.Glob(schemaFS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no schema files found")
	for _, name := range files {
		content, err := fs.ReadFile(schemaFS, name)
		require.NoError(t, err)
		// One statement per Exec.
		for _, stmt := range strings.Split(string(content), ";") {
			if isBlank(stmt) {
				continue
			}
			require.NoError(t, conn.Exec(ctx, stmt), "apply %s", name)
		}
	}

	return conn, func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}
}

// isBlank reports whether stmt holds only whitespace and -- comments.
func isBlank(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
