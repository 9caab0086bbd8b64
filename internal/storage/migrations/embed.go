// Package migrations applies the embedded schema to PostgreSQL and ClickHouse.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Dialect directories inside FS.
const (
	DialectPostgres   = "postgres"
	DialectClickhouse = "clickhouse"
)

// FS holds the SQL files of every dialect.
//
//go:embed postgres/*.sql clickhouse/*.sql
var FS embed.FS

// Migration is one SQL file. Version is the file name without extension,
// e.g. "001_price_series".
type Migration struct {
	Version string
	SQL     string
}

// Load returns the non-empty migrations of a dialect in lexical order.
func Load(fsys fs.FS, dialect string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dialect)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dialect, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dialect, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{
			Version: strings.TrimSuffix(name, ".sql"),
			SQL:     string(data),
		})
	}
	return out, nil
}
