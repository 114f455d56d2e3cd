package window

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/eunmann/rangeagg/pkg/prefix"
)

// sliceSource is a growable Source for tests.
type sliceSource struct {
	values []int64
}

func (s *sliceSource) At(i int) int64 { return s.values[i] }

func pushFixed(t *testing.T, k int, values []int64) []Aggregate {
	t.Helper()
	src := &sliceSource{}
	w, err := NewFixed(k, src)
	if err != nil {
		t.Fatalf("NewFixed(%d) failed: %v", k, err)
	}
	var out []Aggregate
	for i, v := range values {
		src.values = append(src.values, v)
		agg, ok, err := w.Push(i, v)
		if err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
		if ok {
			out = append(out, agg)
		}
	}
	return out
}

func TestFixedWindowKnownValues(t *testing.T) {
	aggs := pushFixed(t, 3, []int64{2, 1, 5, 1, 3, 2})

	var maxima, sums []int64
	for _, a := range aggs {
		maxima = append(maxima, a.Max)
		sums = append(sums, a.Sum)
	}

	if want := []int64{5, 5, 5, 3}; !reflect.DeepEqual(maxima, want) {
		t.Errorf("maxima = %v, want %v", maxima, want)
	}
	if want := []int64{8, 7, 9, 6}; !reflect.DeepEqual(sums, want) {
		t.Errorf("sums = %v, want %v", sums, want)
	}
	if aggs[2].Left != 2 || aggs[2].Right != 5 {
		t.Errorf("third window = [%d, %d), want [2, 5)", aggs[2].Left, aggs[2].Right)
	}
	if aggs[1].Distinct != 2 {
		t.Errorf("distinct in [1,5,1] = %d, want 2", aggs[1].Distinct)
	}
}

func TestFixedWindowMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	values := make([]int64, 120)
	for i := range values {
		values[i] = rng.Int64N(21) - 10
	}

	for k := 1; k <= len(values); k += 9 {
		aggs := pushFixed(t, k, values)
		if len(aggs) != len(values)-k+1 {
			t.Fatalf("k=%d: got %d windows, want %d", k, len(aggs), len(values)-k+1)
		}
		for i, a := range aggs {
			slice := values[i : i+k]
			wantMax, wantSum := slice[0], int64(0)
			distinct := map[int64]bool{}
			for _, v := range slice {
				wantMax = max(wantMax, v)
				wantSum += v
				distinct[v] = true
			}
			if a.Max != wantMax || a.Sum != wantSum || a.Distinct != len(distinct) {
				t.Fatalf("k=%d window %d: got %+v, want max=%d sum=%d distinct=%d",
					k, i, a, wantMax, wantSum, len(distinct))
			}
		}
	}
}

func TestFixedWindowInvalidSize(t *testing.T) {
	for _, k := range []int{0, -3} {
		if _, err := NewFixed(k, &sliceSource{}); !errors.Is(err, ErrInvalidWindowSize) {
			t.Errorf("NewFixed(%d) err = %v, want ErrInvalidWindowSize", k, err)
		}
	}
}

func TestFixedWindowOutOfOrder(t *testing.T) {
	src := &sliceSource{values: []int64{1, 2}}
	w, _ := NewFixed(2, src)
	if _, _, err := w.Push(1, 2); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Push err = %v, want ErrOutOfOrder", err)
	}
}

func TestFixedWindowSumOverflow(t *testing.T) {
	src := &sliceSource{values: []int64{-10, math.MaxInt64 - 5, 10, 0, 1}}
	w, _ := NewFixed(3, src)

	for i := range 2 {
		if _, _, err := w.Push(i, src.values[i]); err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
	}
	agg, ok, err := w.Push(2, src.values[2])
	if err != nil || !ok || agg.Sum != math.MaxInt64-5 {
		t.Fatalf("Push(2) = %+v, %v, %v; want sum %d", agg, ok, err, int64(math.MaxInt64-5))
	}

	// [1, 4) sums to MaxInt64+5.
	if _, ok, err := w.Push(3, src.values[3]); ok || !errors.Is(err, prefix.ErrOverflow) {
		t.Fatalf("Push(3) = %v, %v; want ErrOverflow", ok, err)
	}
	if _, _, err := w.Push(4, src.values[4]); !errors.Is(err, prefix.ErrOverflow) {
		t.Errorf("Push(4) err = %v, want sticky ErrOverflow", err)
	}
	if !errors.Is(w.Err(), prefix.ErrOverflow) {
		t.Errorf("Err() = %v, want ErrOverflow", w.Err())
	}

	w.Reset()
	if w.Err() != nil {
		t.Errorf("Err() after Reset = %v", w.Err())
	}
}

func TestFixedWindowSumPassesThroughOverflow(t *testing.T) {
	// After evicting -10 the remaining two values sum past MaxInt64, but
	// every full window fits.
	aggs := pushFixed(t, 3, []int64{-10, math.MaxInt64, 5, -10})
	if len(aggs) != 2 {
		t.Fatalf("got %d windows, want 2", len(aggs))
	}
	if aggs[0].Sum != math.MaxInt64-5 || aggs[1].Sum != math.MaxInt64-5 {
		t.Errorf("sums = %d, %d; want %d twice", aggs[0].Sum, aggs[1].Sum, int64(math.MaxInt64-5))
	}
	if aggs[1].Max != math.MaxInt64 {
		t.Errorf("max = %d, want MaxInt64", aggs[1].Max)
	}
}

func TestDequeKeepsDecreasingValues(t *testing.T) {
	var d Deque
	for i, v := range []int64{3, 1, 2, 2, 0} {
		d.PushBack(i, v)
	}
	idx, val, ok := d.Front()
	if !ok || idx != 0 || val != 3 {
		t.Fatalf("Front = (%d, %d, %v), want (0, 3, true)", idx, val, ok)
	}
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3 (3, 2@3, 0)", d.Len())
	}

	d.EvictBefore(1)
	idx, val, _ = d.Front()
	if idx != 3 || val != 2 {
		t.Errorf("Front after evict = (%d, %d), want (3, 2)", idx, val)
	}

	d.Reset()
	if _, _, ok := d.Front(); ok {
		t.Error("Front on empty deque reported ok")
	}
}

func runVariable(t *testing.T, c Constraint, obj Objective, values []int64) (Result, []int) {
	t.Helper()
	src := &sliceSource{}
	w := NewVariable(c, obj, src)
	var lefts []int
	for i, v := range values {
		src.values = append(src.values, v)
		if err := w.Push(i, v); err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
		left, _ := w.Bounds()
		lefts = append(lefts, left)
	}
	return w.Result(), lefts
}

func mustMaxDistinct(t *testing.T, n int) *MaxDistinct {
	t.Helper()
	c, err := NewMaxDistinct(n)
	if err != nil {
		t.Fatalf("NewMaxDistinct(%d) failed: %v", n, err)
	}
	return c
}

func TestVariableLongestMaxDistinct(t *testing.T) {
	res, lefts := runVariable(t, mustMaxDistinct(t, 2), Longest, []int64{1, 2, 1, 2, 3, 3, 3, 3})

	if !res.Found || res.Left != 3 || res.Right != 8 {
		t.Errorf("result = %+v, want [3, 8)", res)
	}
	if res.Metric != 2 {
		t.Errorf("metric = %d, want 2", res.Metric)
	}
	for i := 1; i < len(lefts); i++ {
		if lefts[i] < lefts[i-1] {
			t.Fatalf("left decreased at step %d: %v", i, lefts)
		}
	}
}

func TestVariableLongestTieKeepsFirst(t *testing.T) {
	res, _ := runVariable(t, mustMaxDistinct(t, 1), Longest, []int64{1, 1, 2, 2})
	if res.Left != 0 || res.Right != 2 {
		t.Errorf("result = %+v, want [0, 2)", res)
	}
}

func TestVariableShortestTieKeepsFirst(t *testing.T) {
	res, _ := runVariable(t, NewSumAtLeast(3), Shortest, []int64{3, 0, 3})
	if res.Left != 0 || res.Right != 1 {
		t.Errorf("result = %+v, want [0, 1)", res)
	}
}

func TestVariableShortestSumAtLeast(t *testing.T) {
	res, _ := runVariable(t, NewSumAtLeast(7), Shortest, []int64{2, 3, 1, 2, 4, 3})
	if !res.Found || res.Left != 4 || res.Right != 6 || res.Metric != 7 {
		t.Errorf("result = %+v, want [4, 6) sum 7", res)
	}

	res, _ = runVariable(t, NewSumAtLeast(100), Shortest, []int64{2, 3, 1})
	if res.Found {
		t.Errorf("unreachable target reported found: %+v", res)
	}
}

func TestVariableLongestSumAtMost(t *testing.T) {
	res, _ := runVariable(t, NewSumAtMost(5), Longest, []int64{3, 1, 2, 1, 4, 0, 0})
	if res.Left != 3 || res.Right != 7 || res.Metric != 5 {
		t.Errorf("result = %+v, want [3, 7) sum 5", res)
	}

	res, _ = runVariable(t, NewSumAtMost(-1), Longest, []int64{0, 1})
	if res.Found {
		t.Errorf("negative limit reported found: %+v", res)
	}
}

func TestVariableSumRejectsNegative(t *testing.T) {
	src := &sliceSource{values: []int64{1, -1, 2}}
	w := NewVariable(NewSumAtMost(10), Longest, src)
	if err := w.Push(0, 1); err != nil {
		t.Fatalf("Push(0) failed: %v", err)
	}
	if err := w.Push(1, -1); !errors.Is(err, ErrNegativeValue) {
		t.Fatalf("Push(1) err = %v, want ErrNegativeValue", err)
	}
	if err := w.Push(2, 2); !errors.Is(err, ErrNegativeValue) {
		t.Errorf("error not sticky: %v", err)
	}
}

func TestVariableExactFrequencyMatch(t *testing.T) {
	c, err := NewExactFrequencyMatch(LowercaseASCII(), Counts("abc"))
	if err != nil {
		t.Fatalf("NewExactFrequencyMatch failed: %v", err)
	}
	res, _ := runVariable(t, c, First, Symbols("cbaebabacd"))
	if !res.Found || res.Left != 0 || res.Right != 3 {
		t.Errorf("first = %+v, want [0, 3)", res)
	}

	c2, _ := NewExactFrequencyMatch(LowercaseASCII(), Counts("ab"))
	res, _ = runVariable(t, c2, Longest, Symbols("eidboaoo"))
	if res.Found {
		t.Errorf("no permutation present, got %+v", res)
	}

	c3, _ := NewExactFrequencyMatch(LowercaseASCII(), Counts("ab"))
	res, _ = runVariable(t, c3, Shortest, Symbols("eidbaooo"))
	if !res.Found || res.Left != 3 || res.Right != 5 {
		t.Errorf("shortest = %+v, want [3, 5)", res)
	}
}

func TestVariableCoversFrequencies(t *testing.T) {
	upper, err := NewRangeAlphabet('A', 'Z')
	if err != nil {
		t.Fatalf("NewRangeAlphabet failed: %v", err)
	}
	c, err := NewCoversFrequencies(upper, Counts("ABC"))
	if err != nil {
		t.Fatalf("NewCoversFrequencies failed: %v", err)
	}
	res, _ := runVariable(t, c, Shortest, Symbols("ADOBECODEBANC"))
	if !res.Found || res.Left != 9 || res.Right != 13 {
		t.Errorf("shortest = %+v, want [9, 13) (BANC)", res)
	}
}

func TestFrequencyTargetOutsideAlphabet(t *testing.T) {
	if _, err := NewExactFrequencyMatch(LowercaseASCII(), map[int64]int{'A': 1}); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("err = %v, want ErrUnknownSymbol", err)
	}
}

func TestAlphabets(t *testing.T) {
	if _, err := NewRangeAlphabet(5, 4); err == nil {
		t.Error("empty range accepted")
	}
	a := LowercaseASCII()
	if a.Size() != 26 {
		t.Errorf("Size = %d, want 26", a.Size())
	}
	if slot, ok := a.Slot('c'); !ok || slot != 2 {
		t.Errorf("Slot('c') = (%d, %v)", slot, ok)
	}
	if _, ok := a.Slot('c' + 26); ok {
		t.Error("symbol beyond range mapped to a slot")
	}

	set := NewSetAlphabet(-7, 1000, -7)
	if set.Size() != 2 {
		t.Errorf("set Size = %d, want 2", set.Size())
	}
	if _, ok := set.Slot(3); ok {
		t.Error("unknown symbol mapped to a slot")
	}
}

func TestVariableReset(t *testing.T) {
	src := &sliceSource{values: []int64{1, 2}}
	w := NewVariable(mustMaxDistinct(t, 1), Longest, src)
	_ = w.Push(0, 1)
	_ = w.Push(1, 2)
	w.Reset()
	if l, r := w.Bounds(); l != 0 || r != 0 {
		t.Errorf("Bounds after reset = [%d, %d)", l, r)
	}
	if w.Result().Found {
		t.Error("result survived reset")
	}
}
