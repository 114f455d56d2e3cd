package prefix

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func build(t *testing.T, values []int64) *Index {
	t.Helper()
	x := NewIndex(len(values))
	for _, v := range values {
		if err := x.Extend(v); err != nil {
			t.Fatalf("Extend(%d) failed: %v", v, err)
		}
	}
	return x
}

func TestRangeSumKnownValues(t *testing.T) {
	x := build(t, []int64{-2, 0, 3, -5, 2, -1})

	tests := []struct {
		left, right int
		want        int64
	}{
		{0, 3, 1},
		{2, 6, -1},
		{0, 6, -3},
		{4, 4, 0},
		{0, 0, 0},
		{6, 6, 0},
	}

	for _, tt := range tests {
		got, err := x.RangeSum(tt.left, tt.right)
		if err != nil {
			t.Fatalf("RangeSum(%d, %d) failed: %v", tt.left, tt.right, err)
		}
		if got != tt.want {
			t.Errorf("RangeSum(%d, %d) = %d, want %d", tt.left, tt.right, got, tt.want)
		}
	}
}

func TestRangeSumInvalid(t *testing.T) {
	x := build(t, []int64{1, 2, 3})

	for _, r := range [][2]int{{-1, 2}, {2, 1}, {0, 4}, {4, 4}} {
		if _, err := x.RangeSum(r[0], r[1]); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("RangeSum(%d, %d) err = %v, want ErrInvalidRange", r[0], r[1], err)
		}
	}
}

func TestRangeSumMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	values := make([]int64, 200)
	for i := range values {
		values[i] = rng.Int64N(200_001) - 100_000
	}
	x := build(t, values)

	for left := 0; left <= len(values); left += 7 {
		for right := left; right <= len(values); right += 3 {
			var want int64
			for _, v := range values[left:right] {
				want += v
			}
			got, err := x.RangeSum(left, right)
			if err != nil {
				t.Fatalf("RangeSum(%d, %d) failed: %v", left, right, err)
			}
			if got != want {
				t.Fatalf("RangeSum(%d, %d) = %d, want %d", left, right, got, want)
			}
			again, _ := x.RangeSum(left, right)
			if again != got {
				t.Fatalf("RangeSum(%d, %d) not idempotent: %d then %d", left, right, got, again)
			}
		}
	}
}

func TestExtendOverflow(t *testing.T) {
	x := build(t, []int64{math.MaxInt64 - 1})

	if err := x.Extend(2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Extend err = %v, want ErrOverflow", err)
	}
	if x.Len() != 1 {
		t.Errorf("Len after failed Extend = %d, want 1", x.Len())
	}
	if x.Total() != math.MaxInt64-1 {
		t.Errorf("Total changed after failed Extend: %d", x.Total())
	}

	y := build(t, []int64{math.MinInt64 + 1})
	if err := y.Extend(-2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Extend err = %v, want ErrOverflow", err)
	}
}

func TestRangeSumOverflow(t *testing.T) {
	x := build(t, []int64{math.MinInt64 + 10, math.MaxInt64, math.MaxInt64 - 20})

	if _, err := x.RangeSum(1, 3); !errors.Is(err, ErrOverflow) {
		t.Fatalf("RangeSum err = %v, want ErrOverflow", err)
	}
	got, err := x.RangeSum(0, 2)
	if err != nil {
		t.Fatalf("RangeSum(0, 2) failed: %v", err)
	}
	if got != 9 {
		t.Errorf("RangeSum(0, 2) = %d, want 9", got)
	}
}

func TestViewAndReset(t *testing.T) {
	x := build(t, []int64{4, 5})
	view := x.View()

	x.Reset()
	if x.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", x.Len())
	}
	if view.Len() != 2 || view.At(2) != 9 {
		t.Errorf("view changed after Reset: len=%d", view.Len())
	}
	if _, err := x.At(1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("At(1) err = %v, want ErrOutOfRange", err)
	}
}
