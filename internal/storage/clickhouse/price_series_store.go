package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore using ClickHouse.
type PriceSeriesStore struct {
	conn *Conn
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(conn *Conn) *PriceSeriesStore {
	return &PriceSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, timestamp_ms).
// MergeTree does not enforce keys, so duplicates are checked before the batch is sent.
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		symbol      string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.Symbol, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.Symbol, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_series (symbol, timestamp_ms, price)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Symbol, p.TimestampMs, p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
func (s *PriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, price
		FROM price_series
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
func (s *PriceSeriesStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, price
		FROM price_series
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// ListSymbols returns all stored symbols in ascending order.
func (s *PriceSeriesStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM price_series ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}
	return symbols, nil
}

func (s *PriceSeriesStore) exists(ctx context.Context, symbol string, timestampMs int64) (bool, error) {
	query := `SELECT count(*) FROM price_series WHERE symbol = ? AND timestamp_ms = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, symbol, timestampMs).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPricePoints(rows driver.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Symbol, &p.TimestampMs, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}
	return points, nil
}
