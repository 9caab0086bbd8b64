package dataio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"backtest-lab/internal/domain"
)

// PriceRecord is the Parquet schema for price observations.
type PriceRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
}

// LoadParquetFile reads price records from path. When symbol is non-empty only
// its rows are returned. The result is sorted by timestamp.
func LoadParquetFile(path, symbol string) ([]*domain.PricePoint, error) {
	records, err := parquet.ReadFile[PriceRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	points := make([]*domain.PricePoint, 0, len(records))
	for _, r := range records {
		if symbol != "" && r.Symbol != symbol {
			continue
		}
		points = append(points, &domain.PricePoint{
			Symbol:      r.Symbol,
			TimestampMs: r.Timestamp,
			Price:       r.Price,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
	return points, nil
}

// WriteParquetFile writes points to path, creating parent directories.
func WriteParquetFile(path string, points []*domain.PricePoint) error {
	records := make([]PriceRecord, len(points))
	for i, p := range points {
		records[i] = PriceRecord{Symbol: p.Symbol, Timestamp: p.TimestampMs, Price: p.Price}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
