// Package remainder maps prefix-sum keys (raw, or reduced modulo k) to
// either an occurrence count or the first position they occurred at. Two
// positions with equal keys bound a subarray whose sum is zero, or a
// multiple of k, after the caller's key transformation.
package remainder

import (
	"errors"
	"fmt"
)

var (
	// ErrStrategyMismatch indicates a lookup with a strategy other than the
	// one the index was created with.
	ErrStrategyMismatch = errors.New("strategy mismatch")
	// ErrZeroModulus indicates a modulus of zero.
	ErrZeroModulus = errors.New("modulus must be non-zero")
)

// Strategy selects what an Index records per key.
type Strategy int

const (
	// CountAll counts every occurrence of a key.
	CountAll Strategy = iota
	// FirstOccurrenceOnly keeps the position a key was first seen at.
	FirstOccurrenceOnly
)

func (s Strategy) String() string {
	switch s {
	case CountAll:
		return "count-all"
	case FirstOccurrenceOnly:
		return "first-occurrence"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Match is the answer to RecordAndQuery. For CountAll, Count is the number
// of earlier occurrences of the key. For FirstOccurrenceOnly, Position is
// the earlier first position and Found reports whether one existed.
type Match struct {
	Count    int
	Position int
	Found    bool
}

// Index is a single-strategy key index.
type Index struct {
	strategy Strategy
	counts   map[int64]int
	first    map[int64]int
}

// New creates an empty index using strategy.
func New(strategy Strategy) *Index {
	x := &Index{strategy: strategy}
	if strategy == CountAll {
		x.counts = make(map[int64]int)
	} else {
		x.first = make(map[int64]int)
	}
	return x
}

// Strategy returns the index's strategy.
func (x *Index) Strategy() Strategy {
	return x.strategy
}

// Seed records the empty-prefix base case: {0: 1} for counting, {0: 0}
// for first occurrence.
func (x *Index) Seed() {
	x.Record(0, 0)
}

// Record notes an occurrence of key at pos without querying. Lookups for
// sum targets use a different key than the one recorded, so they pair
// Lookup(p - target) with Record(p).
func (x *Index) Record(key int64, pos int) {
	if x.strategy == CountAll {
		x.counts[key]++
		return
	}
	if _, ok := x.first[key]; !ok {
		x.first[key] = pos
	}
}

// RecordAndQuery looks key up, then records the occurrence at pos. A
// FirstOccurrenceOnly entry is never overwritten once set.
func (x *Index) RecordAndQuery(key int64, pos int, strategy Strategy) (Match, error) {
	if strategy != x.strategy {
		return Match{}, fmt.Errorf("query %s on %s index: %w", strategy, x.strategy, ErrStrategyMismatch)
	}

	if x.strategy == CountAll {
		n := x.counts[key]
		x.counts[key] = n + 1
		return Match{Count: n, Found: n > 0}, nil
	}

	if first, ok := x.first[key]; ok {
		return Match{Position: first, Found: true}, nil
	}
	x.first[key] = pos
	return Match{}, nil
}

// Lookup returns the recorded state for key without recording anything.
func (x *Index) Lookup(key int64) Match {
	if x.strategy == CountAll {
		n := x.counts[key]
		return Match{Count: n, Found: n > 0}
	}
	first, ok := x.first[key]
	return Match{Position: first, Found: ok}
}

// Len returns the number of distinct keys.
func (x *Index) Len() int {
	if x.strategy == CountAll {
		return len(x.counts)
	}
	return len(x.first)
}

// NormalizeMod reduces sum into [0, |k|), so negative prefix sums land on
// the same residue as their positive counterparts.
func NormalizeMod(sum, k int64) (int64, error) {
	if k == 0 {
		return 0, ErrZeroModulus
	}
	if k < 0 {
		k = -k
	}
	// k == MinInt64 negates to itself; sum % MinInt64 is still well defined.
	r := sum % k
	if r < 0 {
		r += k
	}
	return r, nil
}
