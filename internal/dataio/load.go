package dataio

import (
	"fmt"
	"path/filepath"
	"strings"

	"backtest-lab/internal/domain"
)

// LoadFile dispatches on the file extension (.csv or .parquet).
func LoadFile(path string, opts CSVOptions) ([]*domain.PricePoint, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSVFile(path, opts)
	case ".parquet":
		return LoadParquetFile(path, opts.Symbol)
	default:
		return nil, fmt.Errorf("unsupported price file %q", path)
	}
}
