package window

import (
	"fmt"
)

// maxRangeAlphabet bounds the array backing a RangeAlphabet.
const maxRangeAlphabet = 1 << 20

// Alphabet maps symbols to dense slots for frequency tables. Symbols that
// are not in the alphabet report ok=false; they are never folded into a
// slot by modulo arithmetic.
type Alphabet interface {
	Slot(symbol int64) (slot int, ok bool)
	Size() int
}

// RangeAlphabet covers the contiguous symbol range [Lo, Hi].
type RangeAlphabet struct {
	lo, hi int64
}

// NewRangeAlphabet creates an array-indexed alphabet for [lo, hi].
func NewRangeAlphabet(lo, hi int64) (RangeAlphabet, error) {
	if hi < lo {
		return RangeAlphabet{}, fmt.Errorf("alphabet range [%d, %d] is empty", lo, hi)
	}
	if uint64(hi-lo) >= maxRangeAlphabet {
		return RangeAlphabet{}, fmt.Errorf("alphabet range [%d, %d] exceeds %d symbols", lo, hi, maxRangeAlphabet)
	}
	return RangeAlphabet{lo: lo, hi: hi}, nil
}

// LowercaseASCII is the alphabet 'a'..'z'.
func LowercaseASCII() RangeAlphabet {
	return RangeAlphabet{lo: 'a', hi: 'z'}
}

// Slot implements Alphabet.
func (a RangeAlphabet) Slot(symbol int64) (int, bool) {
	if symbol < a.lo || symbol > a.hi {
		return 0, false
	}
	return int(symbol - a.lo), true
}

// Size implements Alphabet.
func (a RangeAlphabet) Size() int {
	return int(a.hi-a.lo) + 1
}

// SetAlphabet covers an arbitrary set of symbols.
type SetAlphabet struct {
	slots map[int64]int
}

// NewSetAlphabet creates a map-backed alphabet. Duplicates are ignored.
func NewSetAlphabet(symbols ...int64) *SetAlphabet {
	slots := make(map[int64]int, len(symbols))
	for _, s := range symbols {
		if _, ok := slots[s]; !ok {
			slots[s] = len(slots)
		}
	}
	return &SetAlphabet{slots: slots}
}

// Slot implements Alphabet.
func (a *SetAlphabet) Slot(symbol int64) (int, bool) {
	slot, ok := a.slots[symbol]
	return slot, ok
}

// Size implements Alphabet.
func (a *SetAlphabet) Size() int {
	return len(a.slots)
}

// Symbols converts a string into symbol values, one per byte.
func Symbols(s string) []int64 {
	out := make([]int64, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = int64(s[i])
	}
	return out
}

// Counts returns the per-symbol counts of s, for use as a frequency target.
func Counts(s string) map[int64]int {
	out := make(map[int64]int)
	for i := 0; i < len(s); i++ {
		out[int64(s[i])]++
	}
	return out
}
