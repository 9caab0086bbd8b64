package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore using PostgreSQL.
type PriceSeriesStore struct {
	pool *Pool
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(pool *Pool) *PriceSeriesStore {
	return &PriceSeriesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk adds multiple points atomically. Fails entire batch on any duplicate.
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	query := `INSERT INTO price_series (symbol, timestamp_ms, price) VALUES ($1, $2, $3)`

	return s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		for _, p := range points {
			if p == nil || p.Symbol == "" {
				return storage.ErrInvalidInput
			}
			if _, err := tx.Exec(ctx, query, p.Symbol, p.TimestampMs, p.Price); err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert price point %s@%d: %w", p.Symbol, p.TimestampMs, err)
			}
		}
		return nil
	})
}

// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
func (s *PriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, price
		FROM price_series
		WHERE symbol = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get prices by symbol: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
func (s *PriceSeriesStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, price
		FROM price_series
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get prices by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// ListSymbols returns all stored symbols in ascending order.
func (s *PriceSeriesStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM price_series ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan symbols: %w", err)
	}
	return symbols, nil
}

func scanPricePoints(rows pgx.Rows) ([]*domain.PricePoint, error) {
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
