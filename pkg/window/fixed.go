// Package window implements incremental sliding windows over an
// append-only sequence: fixed-size windows with sum, max and distinct-count
// aggregates, and variable windows driven by a caller-supplied constraint.
//
// Windows are half-open index ranges [left, right). left never moves
// backward during a forward pass, which keeps total work linear in the
// number of values pushed.
package window

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/eunmann/rangeagg/pkg/prefix"
)

var (
	// ErrInvalidWindowSize indicates a fixed window size <= 0 or larger
	// than the sequence it is applied to.
	ErrInvalidWindowSize = errors.New("invalid window size")
	// ErrOutOfOrder indicates a push whose index is not the next one.
	ErrOutOfOrder = errors.New("push out of order")
	// ErrNegativeValue indicates a negative value fed to a sum constraint,
	// for which two-pointer contraction is not monotone.
	ErrNegativeValue = errors.New("negative value in sum window")
	// ErrInvalidLimit indicates a constraint limit that can never be met.
	ErrInvalidLimit = errors.New("invalid constraint limit")
	// ErrUnknownSymbol indicates a target symbol outside the alphabet.
	ErrUnknownSymbol = errors.New("symbol not in alphabet")
)

// Source gives windows access to already-pushed values so that they can
// evict sequence[left] without keeping their own copy.
type Source interface {
	At(i int) int64
}

// Aggregate is the state of one fixed window position.
type Aggregate struct {
	Left     int
	Right    int
	Sum      int64
	Max      int64
	Distinct int
}

// wideSum is a two's complement 128-bit accumulator. A window of int64
// values can pass through sums outside int64 while sliding even when every
// emitted sum fits.
type wideSum struct {
	hi int64
	lo uint64
}

func (s *wideSum) add(v int64) {
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, uint64(v), 0)
	s.hi += int64(carry) + v>>63
}

func (s *wideSum) sub(v int64) {
	var borrow uint64
	s.lo, borrow = bits.Sub64(s.lo, uint64(v), 0)
	s.hi -= int64(borrow) + v>>63
}

// int64 returns the sum if it is representable.
func (s wideSum) int64() (int64, bool) {
	v := int64(s.lo)
	return v, s.hi == v>>63
}

// Fixed maintains a sliding window of exactly k values.
type Fixed struct {
	k     int
	src   Source
	left  int
	right int
	sum   wideSum
	max   Deque
	freq  map[int64]int
	err   error
}

// NewFixed creates a fixed window of size k reading evicted values from src.
func NewFixed(k int, src Source) (*Fixed, error) {
	if k <= 0 {
		return nil, fmt.Errorf("window size %d: %w", k, ErrInvalidWindowSize)
	}
	return &Fixed{
		k:    k,
		src:  src,
		freq: make(map[int64]int),
	}, nil
}

// Size returns k.
func (w *Fixed) Size() int {
	return w.k
}

// Bounds returns the current [left, right).
func (w *Fixed) Bounds() (left, right int) {
	return w.left, w.right
}

// Err returns the error that stopped the window, if any.
func (w *Fixed) Err() error {
	return w.err
}

// Push extends the window with value v at index i. Once the window holds k
// values it emits their aggregate and slides by one, so n pushes emit
// exactly n-k+1 aggregates.
//
// A window whose sum does not fit in int64 fails with prefix.ErrOverflow.
// The error is sticky: later pushes return it until Reset.
func (w *Fixed) Push(i int, v int64) (Aggregate, bool, error) {
	if w.err != nil {
		return Aggregate{}, false, w.err
	}
	if i != w.right {
		return Aggregate{}, false, fmt.Errorf("push index %d, want %d: %w", i, w.right, ErrOutOfOrder)
	}

	w.sum.add(v)
	w.right++
	w.max.PushBack(i, v)
	w.freq[v]++

	if w.right-w.left < w.k {
		return Aggregate{}, false, nil
	}

	sum, ok := w.sum.int64()
	if !ok {
		w.err = fmt.Errorf("window [%d, %d) sum: %w", w.left, w.right, prefix.ErrOverflow)
		return Aggregate{}, false, w.err
	}
	_, maxVal, _ := w.max.Front()
	agg := Aggregate{
		Left:     w.left,
		Right:    w.right,
		Sum:      sum,
		Max:      maxVal,
		Distinct: len(w.freq),
	}

	w.evict()
	return agg, true, nil
}

func (w *Fixed) evict() {
	old := w.src.At(w.left)
	w.sum.sub(old)
	if w.freq[old]--; w.freq[old] == 0 {
		delete(w.freq, old)
	}
	w.left++
	w.max.EvictBefore(w.left)
}

// Reset returns the window to [0, 0).
func (w *Fixed) Reset() {
	w.left, w.right = 0, 0
	w.sum = wideSum{}
	w.err = nil
	w.max.Reset()
	clear(w.freq)
}
