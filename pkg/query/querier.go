// Package query answers range-aggregation questions over a point-in-time
// view of a sequence: range sums from the prefix index, fixed-window
// aggregates, predicate-driven window searches and remainder-index
// subarray counting.
//
// Absence is never an error. Searches that find nothing return a
// window.Result with Found set to false.
package query

import (
	"errors"
	"fmt"
	"iter"

	"github.com/eunmann/rangeagg/pkg/prefix"
	"github.com/eunmann/rangeagg/pkg/window"
)

// ErrInvalidArgument indicates query arguments that describe no question.
var ErrInvalidArgument = errors.New("invalid query argument")

// Source is a read-only sequence with its prefix sums.
type Source interface {
	// Len returns the number of values.
	Len() int
	// Value returns sequence[i] for i in [0, Len).
	Value(i int) int64
	// Prefix returns prefix[i] for i in [0, Len].
	Prefix(i int) int64
}

// FirstOccurrences is implemented by sources that carry a precomputed
// first-position table over their prefix sums.
type FirstOccurrences interface {
	// FirstOccurrence returns the lowest i with prefix[i] == sum.
	FirstOccurrence(sum int64) (pos int, ok bool)
}

// Querier answers queries over one Source. It holds no mutable state, so a
// Querier over an immutable source may be shared between goroutines.
type Querier struct {
	src Source
}

// New creates a Querier over src.
func New(src Source) *Querier {
	return &Querier{src: src}
}

// Len returns the number of values visible to the querier.
func (q *Querier) Len() int {
	return q.src.Len()
}

// RangeSum returns sum(sequence[left:right]).
func (q *Querier) RangeSum(left, right int) (int64, error) {
	n := q.src.Len()
	if left < 0 || right < left || right > n {
		return 0, fmt.Errorf("range [%d, %d) over %d values: %w", left, right, n, prefix.ErrInvalidRange)
	}
	sum, ok := prefix.Sub(q.src.Prefix(right), q.src.Prefix(left))
	if !ok {
		return 0, fmt.Errorf("range [%d, %d): %w", left, right, prefix.ErrOverflow)
	}
	return sum, nil
}

// values adapts a Source to window.Source.
type values struct {
	src Source
}

func (v values) At(i int) int64 { return v.src.Value(i) }

// FixedIterator yields one aggregate per fixed-window position. It is
// lazy and single-pass: once drained it stays drained.
type FixedIterator struct {
	src  Source
	w    *window.Fixed
	next int
	err  error
}

// MaxPerFixedWindow returns an iterator over the n-k+1 windows of size k.
// Each aggregate carries the window maximum along with its sum and
// distinct count.
func (q *Querier) MaxPerFixedWindow(k int) (*FixedIterator, error) {
	n := q.src.Len()
	if k <= 0 || k > n {
		return nil, fmt.Errorf("window size %d over %d values: %w", k, n, window.ErrInvalidWindowSize)
	}
	w, err := window.NewFixed(k, values{q.src})
	if err != nil {
		return nil, err
	}
	return &FixedIterator{src: q.src, w: w}, nil
}

// Next returns the next window aggregate, or ok=false when the sequence is
// exhausted or an error occurred.
func (it *FixedIterator) Next() (window.Aggregate, bool) {
	for it.err == nil && it.next < it.src.Len() {
		i := it.next
		it.next++
		agg, ok, err := it.w.Push(i, it.src.Value(i))
		if err != nil {
			it.err = err
			break
		}
		if ok {
			return agg, true
		}
	}
	it.next = it.src.Len()
	return window.Aggregate{}, false
}

// All adapts the iterator to a range-over-func sequence. It consumes the
// iterator.
func (it *FixedIterator) All() iter.Seq[window.Aggregate] {
	return func(yield func(window.Aggregate) bool) {
		for {
			agg, ok := it.Next()
			if !ok || !yield(agg) {
				return
			}
		}
	}
}

// Err returns the error that stopped iteration, if any.
func (it *FixedIterator) Err() error {
	return it.err
}

// MaxSumFixedWindow returns the size-k window with the largest sum. Ties
// keep the leftmost window.
func (q *Querier) MaxSumFixedWindow(k int) (window.Aggregate, error) {
	it, err := q.MaxPerFixedWindow(k)
	if err != nil {
		return window.Aggregate{}, err
	}
	best, ok := it.Next()
	for agg := range it.All() {
		if agg.Sum > best.Sum {
			best = agg
		}
	}
	if err := it.Err(); err != nil {
		return window.Aggregate{}, err
	}
	if !ok {
		return window.Aggregate{}, fmt.Errorf("window size %d: %w", k, window.ErrInvalidWindowSize)
	}
	return best, nil
}
