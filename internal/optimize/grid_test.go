package optimize

import (
	"errors"
	"math"
	"testing"

	"backtest-lab/internal/domain"
)

func TestValues(t *testing.T) {
	tests := []struct {
		name string
		r    domain.ParamRange
		want []float64
	}{
		{"exclusive stop", domain.ParamRange{Start: 2, Stop: 5, Step: 1}, []float64{2, 3, 4}},
		{"uneven step", domain.ParamRange{Start: 5, Stop: 10, Step: 2}, []float64{5, 7, 9}},
		{"fractional step", domain.ParamRange{Start: 0, Stop: 1, Step: 0.25}, []float64{0, 0.25, 0.5, 0.75}},
		{"single value", domain.ParamRange{Start: 3, Stop: 4, Step: 10}, []float64{3}},
		{"span below tolerance", domain.ParamRange{Start: 0, Stop: 1e-10, Step: 1}, []float64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Values(tt.r)
			if err != nil {
				t.Fatalf("Values failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestValues_TenthSteps(t *testing.T) {
	got, err := Values(domain.ParamRange{Start: 0.1, Stop: 0.4, Step: 0.1})
	if err != nil {
		t.Fatalf("Values failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 values, got %v", got)
	}
}

func TestValues_Invalid(t *testing.T) {
	tests := []domain.ParamRange{
		{Start: 1, Stop: 5, Step: 0},
		{Start: 1, Stop: 5, Step: -1},
		{Start: 5, Stop: 5, Step: 1},
		{Start: 6, Stop: 5, Step: 1},
		{Start: math.NaN(), Stop: 5, Step: 1},
		{Start: 1, Stop: math.Inf(1), Step: 1},
		{Start: -1e308, Stop: 1e308, Step: 1},
	}
	for _, r := range tests {
		if _, err := Values(r); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("%+v: expected ErrInvalidRange, got %v", r, err)
		}
	}
}

func TestNewGrid_TinySpan(t *testing.T) {
	g, err := NewGrid([]domain.ParamRange{
		{Start: 0, Stop: 1e-10, Step: 1},
		{Start: 2, Stop: 4, Step: 1},
	})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("expected 2 combinations, got %d", g.Size())
	}
}

func TestValues_TooLarge(t *testing.T) {
	_, err := Values(domain.ParamRange{Start: 0, Stop: 1e12, Step: 1})
	if !errors.Is(err, ErrGridTooLarge) {
		t.Errorf("expected ErrGridTooLarge, got %v", err)
	}
}

func TestGrid_LexicographicOrder(t *testing.T) {
	g, err := NewGrid([]domain.ParamRange{
		{Start: 2, Stop: 5, Step: 1},
		{Start: 5, Stop: 10, Step: 1},
	})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}

	if g.Size() != 15 {
		t.Fatalf("expected 15 combinations, got %d", g.Size())
	}
	if g.Dimensions() != 2 {
		t.Errorf("expected 2 dimensions, got %d", g.Dimensions())
	}

	var visited [][]float64
	g.Each(func(index int, params []float64) bool {
		if index != len(visited) {
			t.Errorf("expected index %d, got %d", len(visited), index)
		}
		visited = append(visited, params)
		return true
	})

	if len(visited) != 15 {
		t.Fatalf("expected 15 visits, got %d", len(visited))
	}
	want := [][]float64{{2, 5}, {2, 6}, {2, 7}, {2, 8}, {2, 9}, {3, 5}}
	for i, w := range want {
		if visited[i][0] != w[0] || visited[i][1] != w[1] {
			t.Errorf("combination %d: expected %v, got %v", i, w, visited[i])
		}
	}
	last := visited[14]
	if last[0] != 4 || last[1] != 9 {
		t.Errorf("expected last combination [4 9], got %v", last)
	}

	for i, params := range visited {
		at := g.At(i)
		if at[0] != params[0] || at[1] != params[1] {
			t.Errorf("At(%d)=%v differs from Each %v", i, at, params)
		}
	}
}

func TestGrid_EachStopsEarly(t *testing.T) {
	g, _ := NewGrid([]domain.ParamRange{{Start: 0, Stop: 10, Step: 1}, {Start: 0, Stop: 10, Step: 1}})
	count := 0
	g.Each(func(_ int, _ []float64) bool {
		count++
		return count < 7
	})
	if count != 7 {
		t.Errorf("expected 7 visits, got %d", count)
	}
}

func TestGrid_EachCopiesParams(t *testing.T) {
	g, _ := NewGrid([]domain.ParamRange{{Start: 0, Stop: 3, Step: 1}})
	var kept [][]float64
	g.Each(func(_ int, params []float64) bool {
		kept = append(kept, params)
		return true
	})
	if kept[0][0] != 0 || kept[2][0] != 2 {
		t.Errorf("params slices aliased: %v", kept)
	}
}

func TestGrid_NoRanges(t *testing.T) {
	g, err := NewGrid(nil)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	if g.Size() != 1 {
		t.Errorf("expected one empty combination, got %d", g.Size())
	}
	if len(g.At(0)) != 0 {
		t.Errorf("expected empty params, got %v", g.At(0))
	}
}

func TestGrid_InvalidAxis(t *testing.T) {
	_, err := NewGrid([]domain.ParamRange{{Start: 1, Stop: 2, Step: 1}, {Start: 3, Stop: 1, Step: 1}})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestGrid_TooLarge(t *testing.T) {
	huge := domain.ParamRange{Start: 0, Stop: 100000, Step: 1}
	_, err := NewGrid([]domain.ParamRange{huge, huge})
	if !errors.Is(err, ErrGridTooLarge) {
		t.Errorf("expected ErrGridTooLarge, got %v", err)
	}
}
