// Package prefix maintains cumulative sums over a sequence for O(1)
// range-sum queries.
//
// Sums are accumulated as int64. Inputs bounded by ±10^5 with at most
// 10^5 values stay many orders of magnitude below the limit; outside such
// bounds every Extend is checked and fails with ErrOverflow instead of
// wrapping.
package prefix

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOverflow indicates that accumulating a value would wrap int64.
	ErrOverflow = errors.New("prefix sum overflow")
	// ErrInvalidRange indicates range bounds outside [0, Len] or left > right.
	ErrInvalidRange = errors.New("invalid range")
	// ErrOutOfRange indicates a prefix position beyond Len.
	ErrOutOfRange = errors.New("prefix position out of range")
)

// Index holds prefix[i] = sum(seq[0:i]) with prefix[0] = 0.
type Index struct {
	sums []int64
}

// NewIndex creates an empty prefix index with room for capacity values.
func NewIndex(capacity int) *Index {
	if capacity < 0 {
		capacity = 0
	}
	sums := make([]int64, 1, capacity+1)
	return &Index{sums: sums}
}

// Extend appends prefix[last] + v. On overflow the index is unchanged.
func (x *Index) Extend(v int64) error {
	last := x.sums[len(x.sums)-1]
	next, ok := Add(last, v)
	if !ok {
		return fmt.Errorf("extend %d + %d: %w", last, v, ErrOverflow)
	}
	x.sums = append(x.sums, next)
	return nil
}

// Len returns the number of values covered. The index holds Len()+1 sums.
func (x *Index) Len() int {
	return len(x.sums) - 1
}

// At returns prefix[i] for i in [0, Len].
func (x *Index) At(i int) (int64, error) {
	if i < 0 || i >= len(x.sums) {
		return 0, fmt.Errorf("prefix %d (len %d): %w", i, x.Len(), ErrOutOfRange)
	}
	return x.sums[i], nil
}

// Total returns the sum of all values.
func (x *Index) Total() int64 {
	return x.sums[len(x.sums)-1]
}

// RangeSum returns sum(seq[left:right]).
func (x *Index) RangeSum(left, right int) (int64, error) {
	return rangeSum(x.sums, left, right)
}

// Reset discards all sums and allocates new storage, leaving views intact.
func (x *Index) Reset() {
	sums := make([]int64, 1, cap(x.sums))
	x.sums = sums
}

// View returns a read-only point-in-time view of the index.
func (x *Index) View() View {
	n := len(x.sums)
	return View{sums: x.sums[:n:n]}
}

// View is an immutable prefix of an Index.
type View struct {
	sums []int64
}

// Len returns the number of values covered by the view.
func (v View) Len() int {
	if len(v.sums) == 0 {
		return 0
	}
	return len(v.sums) - 1
}

// At returns prefix[i] without error checking beyond the runtime's own.
func (v View) At(i int) int64 {
	return v.sums[i]
}

// RangeSum returns sum(seq[left:right]).
func (v View) RangeSum(left, right int) (int64, error) {
	return rangeSum(v.sums, left, right)
}

func rangeSum(sums []int64, left, right int) (int64, error) {
	n := len(sums) - 1
	if left < 0 || right < left || right > n {
		return 0, fmt.Errorf("range [%d, %d) over %d values: %w", left, right, n, ErrInvalidRange)
	}
	sum, ok := Sub(sums[right], sums[left])
	if !ok {
		return 0, fmt.Errorf("range [%d, %d): %w", left, right, ErrOverflow)
	}
	return sum, nil
}

// Add returns a+b and whether the addition stayed within int64.
func Add(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// Sub returns a-b and whether the subtraction stayed within int64.
func Sub(a, b int64) (int64, bool) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, false
	}
	return a - b, true
}
