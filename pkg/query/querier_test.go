package query

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/eunmann/rangeagg/pkg/prefix"
	"github.com/eunmann/rangeagg/pkg/window"
)

// sliceSource is an in-memory Source for tests.
type sliceSource struct {
	values []int64
	sums   []int64
}

func newSliceSource(t testing.TB, values []int64) *sliceSource {
	t.Helper()
	idx := prefix.NewIndex(len(values))
	for _, v := range values {
		if err := idx.Extend(v); err != nil {
			t.Fatalf("Extend(%d) failed: %v", v, err)
		}
	}
	view := idx.View()
	sums := make([]int64, len(values)+1)
	for i := range sums {
		sums[i] = view.At(i)
	}
	return &sliceSource{values: values, sums: sums}
}

func (s *sliceSource) Len() int           { return len(s.values) }
func (s *sliceSource) Value(i int) int64  { return s.values[i] }
func (s *sliceSource) Prefix(i int) int64 { return s.sums[i] }

// tableSource adds a precomputed first-occurrence table.
type tableSource struct {
	*sliceSource
	first map[int64]int
}

func newTableSource(t *testing.T, values []int64) *tableSource {
	t.Helper()
	src := newSliceSource(t, values)
	first := make(map[int64]int)
	for i, p := range src.sums {
		if _, ok := first[p]; !ok {
			first[p] = i
		}
	}
	return &tableSource{sliceSource: src, first: first}
}

func (s *tableSource) FirstOccurrence(sum int64) (int, bool) {
	pos, ok := s.first[sum]
	return pos, ok
}

func TestRangeSumKnownValues(t *testing.T) {
	q := New(newSliceSource(t, []int64{-2, 0, 3, -5, 2, -1}))

	tests := []struct {
		left, right int
		want        int64
	}{
		{0, 3, 1},
		{2, 6, -1},
		{0, 6, -3},
		{4, 4, 0},
	}
	for _, tt := range tests {
		got, err := q.RangeSum(tt.left, tt.right)
		if err != nil {
			t.Fatalf("RangeSum(%d, %d) failed: %v", tt.left, tt.right, err)
		}
		if got != tt.want {
			t.Errorf("RangeSum(%d, %d) = %d, want %d", tt.left, tt.right, got, tt.want)
		}
	}

	for _, r := range [][2]int{{-1, 2}, {3, 2}, {0, 7}} {
		if _, err := q.RangeSum(r[0], r[1]); !errors.Is(err, prefix.ErrInvalidRange) {
			t.Errorf("RangeSum(%d, %d) error = %v, want ErrInvalidRange", r[0], r[1], err)
		}
	}
}

func TestMaxPerFixedWindow(t *testing.T) {
	q := New(newSliceSource(t, []int64{2, 1, 5, 1, 3, 2}))

	it, err := q.MaxPerFixedWindow(3)
	if err != nil {
		t.Fatalf("MaxPerFixedWindow failed: %v", err)
	}
	var maxima, sums []int64
	var distinct []int
	for agg := range it.All() {
		maxima = append(maxima, agg.Max)
		sums = append(sums, agg.Sum)
		distinct = append(distinct, agg.Distinct)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}

	if want := []int64{5, 5, 5, 3}; !reflect.DeepEqual(maxima, want) {
		t.Errorf("maxima = %v, want %v", maxima, want)
	}
	if want := []int64{8, 7, 9, 6}; !reflect.DeepEqual(sums, want) {
		t.Errorf("sums = %v, want %v", sums, want)
	}
	if want := []int{3, 2, 3, 3}; !reflect.DeepEqual(distinct, want) {
		t.Errorf("distinct = %v, want %v", distinct, want)
	}

	if _, ok := it.Next(); ok {
		t.Error("drained iterator yielded again")
	}
}

func TestMaxSumFixedWindow(t *testing.T) {
	q := New(newSliceSource(t, []int64{2, 1, 5, 1, 3, 2}))

	best, err := q.MaxSumFixedWindow(3)
	if err != nil {
		t.Fatalf("MaxSumFixedWindow failed: %v", err)
	}
	if best.Sum != 9 || best.Left != 2 || best.Right != 5 {
		t.Errorf("best = %+v, want sum 9 over [2, 5)", best)
	}

	// Equal sums keep the leftmost window.
	q = New(newSliceSource(t, []int64{1, 2, 2, 1}))
	best, err = q.MaxSumFixedWindow(2)
	if err != nil {
		t.Fatalf("MaxSumFixedWindow failed: %v", err)
	}
	if best.Left != 1 || best.Sum != 4 {
		t.Errorf("best = %+v, want sum 4 at left 1", best)
	}
}

func TestFixedWindowInvalidSize(t *testing.T) {
	q := New(newSliceSource(t, []int64{1, 2, 3}))

	for _, k := range []int{0, -1, 4} {
		if _, err := q.MaxPerFixedWindow(k); !errors.Is(err, window.ErrInvalidWindowSize) {
			t.Errorf("MaxPerFixedWindow(%d) error = %v, want ErrInvalidWindowSize", k, err)
		}
		if _, err := q.MaxSumFixedWindow(k); !errors.Is(err, window.ErrInvalidWindowSize) {
			t.Errorf("MaxSumFixedWindow(%d) error = %v, want ErrInvalidWindowSize", k, err)
		}
	}

	empty := New(newSliceSource(t, nil))
	if _, err := empty.MaxPerFixedWindow(1); !errors.Is(err, window.ErrInvalidWindowSize) {
		t.Errorf("empty source error = %v, want ErrInvalidWindowSize", err)
	}
}

func TestFixedWindowMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.IntN(40)
		values := make([]int64, n)
		for i := range values {
			values[i] = rng.Int64N(21) - 10
		}
		k := 1 + rng.IntN(n)

		it, err := New(newSliceSource(t, values)).MaxPerFixedWindow(k)
		if err != nil {
			t.Fatalf("MaxPerFixedWindow(%d) failed: %v", k, err)
		}
		left := 0
		for agg := range it.All() {
			var sum int64
			maxVal := values[left]
			for _, v := range values[left : left+k] {
				sum += v
				maxVal = max(maxVal, v)
			}
			if agg.Left != left || agg.Sum != sum || agg.Max != maxVal {
				t.Fatalf("trial %d: window %d = %+v, want sum %d max %d", trial, left, agg, sum, maxVal)
			}
			left++
		}
		if left != n-k+1 {
			t.Fatalf("trial %d: got %d windows, want %d", trial, left, n-k+1)
		}
	}
}
