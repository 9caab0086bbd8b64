// Package dataio loads price observations from files.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"backtest-lab/internal/domain"
)

// Loader errors
var (
	ErrMissingColumn = errors.New("column not found")
	ErrBadTimestamp  = errors.New("unparseable timestamp")
	ErrBadPrice      = errors.New("unparseable price")
)

// Default column names.
const (
	DefaultTimestampColumn = "date"
	DefaultPriceColumn     = "close"
)

// timestampLayouts are tried in order for non-numeric timestamp cells.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVOptions selects columns of a price table.
type CSVOptions struct {
	Symbol          string // assigned to every point
	TimestampColumn string // defaults to "date"
	PriceColumn     string // defaults to "close"; the symbol name is tried as a fallback
}

// LoadCSVFile reads a price table from path.
func LoadCSVFile(path string, opts CSVOptions) ([]*domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	points, err := LoadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return points, nil
}

// LoadCSV reads a headed price table. Rows with an empty or NaN price are dropped.
// The result is sorted by timestamp.
func LoadCSV(r io.Reader, opts CSVOptions) ([]*domain.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", domain.ErrData)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	tsCol, priceCol, err := resolveColumns(header, opts)
	if err != nil {
		return nil, err
	}

	var points []*domain.PricePoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		priceCell := strings.TrimSpace(record[priceCol])
		if priceCell == "" || strings.EqualFold(priceCell, "nan") {
			continue
		}
		price, err := strconv.ParseFloat(priceCell, 64)
		if err != nil || math.IsNaN(price) {
			return nil, fmt.Errorf("%w: %q on line %d", ErrBadPrice, priceCell, line)
		}

		ts, err := ParseTimestamp(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		points = append(points, &domain.PricePoint{
			Symbol:      opts.Symbol,
			TimestampMs: ts,
			Price:       price,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
	return points, nil
}

// ParseTimestamp parses a timestamp cell into Unix milliseconds.
// Integers are taken as Unix milliseconds; text uses RFC3339 or date layouts in UTC.
func ParseTimestamp(cell string) (int64, error) {
	cell = strings.TrimSpace(cell)
	if ms, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, cell, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, cell)
}

func resolveColumns(header []string, opts CSVOptions) (int, int, error) {
	tsName := opts.TimestampColumn
	if tsName == "" {
		tsName = DefaultTimestampColumn
	}
	priceName := opts.PriceColumn
	if priceName == "" {
		priceName = DefaultPriceColumn
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	tsCol, ok := index[strings.ToLower(tsName)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: timestamp column %q", ErrMissingColumn, tsName)
	}
	priceCol, ok := index[strings.ToLower(priceName)]
	if !ok && opts.Symbol != "" {
		priceCol, ok = index[strings.ToLower(opts.Symbol)]
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: price column %q", ErrMissingColumn, priceName)
	}
	return tsCol, priceCol, nil
}
