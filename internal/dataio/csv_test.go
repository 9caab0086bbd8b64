package dataio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"backtest-lab/internal/domain"
)

func TestLoadCSV(t *testing.T) {
	input := `date,open,close
2024-01-03,1.0,102
2024-01-01,1.0,100
2024-01-02,1.0,
2024-01-04,1.0,NaN
2024-01-05,1.0,101.5
`
	points, err := LoadCSV(strings.NewReader(input), CSVOptions{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points after dropping empty prices, got %d", len(points))
	}

	want := []struct {
		day   int
		price float64
	}{{1, 100}, {3, 102}, {5, 101.5}}
	for i, w := range want {
		ts := time.Date(2024, 1, w.day, 0, 0, 0, 0, time.UTC).UnixMilli()
		if points[i].TimestampMs != ts || points[i].Price != w.price {
			t.Errorf("point %d: got (%d, %v), want (%d, %v)", i, points[i].TimestampMs, points[i].Price, ts, w.price)
		}
		if points[i].Symbol != "EURUSD" {
			t.Errorf("point %d: symbol %q", i, points[i].Symbol)
		}
	}
}

func TestLoadCSV_CustomColumns(t *testing.T) {
	input := "Time,Mid\n1700000000000,1.5\n1700000060000,1.6\n"
	points, err := LoadCSV(strings.NewReader(input), CSVOptions{TimestampColumn: "time", PriceColumn: "MID"})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(points) != 2 || points[1].TimestampMs != 1700000060000 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestLoadCSV_SymbolColumnFallback(t *testing.T) {
	input := "Date,EUR=\n2020-01-01,1.12\n2020-01-02,1.11\n"
	points, err := LoadCSV(strings.NewReader(input), CSVOptions{Symbol: "EUR="})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(points) != 2 || points[0].Price != 1.12 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", domain.ErrData},
		{"missing timestamp column", "when,close\n1,2\n", ErrMissingColumn},
		{"missing price column", "date,open\n2024-01-01,2\n", ErrMissingColumn},
		{"bad price", "date,close\n2024-01-01,abc\n", ErrBadPrice},
		{"bad timestamp", "date,close\nyesterday,1\n", ErrBadTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.input), CSVOptions{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		cell string
		want int64
	}{
		{"1700000000000", 1700000000000},
		{"2024-02-01", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{"2024-02-01 10:30:00", time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC).UnixMilli()},
		{"2024-02-01T10:30:00Z", time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC).UnixMilli()},
		{"2024-02-01T12:30:00+02:00", time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC).UnixMilli()},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.cell)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", tt.cell, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.cell, got, tt.want)
		}
	}
}

func TestLoadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte("date,close\n2024-01-01,1\n2024-01-02,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	points, err := LoadFile(path, CSVOptions{Symbol: "X"})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(points) != 2 {
		t.Errorf("expected 2 points, got %d", len(points))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "prices.json"), CSVOptions{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
