package window

import (
	"fmt"

	"github.com/eunmann/rangeagg/pkg/prefix"
)

// Constraint is the incremental state a variable window keeps about its
// contents.
type Constraint interface {
	// Add accounts for a value entering on the right. On error the
	// constraint is unchanged.
	Add(v int64) error
	// Remove accounts for a value leaving on the left.
	Remove(v int64)
	// Exceeded reports whether the window must shrink from the left.
	Exceeded() bool
	// Satisfied reports whether the current window is a candidate.
	Satisfied() bool
	// Metric is the value reported alongside a candidate window.
	Metric() int64
	// Reset clears all state.
	Reset()
}

// MaxDistinct holds windows with at most n distinct values.
type MaxDistinct struct {
	n    int
	freq map[int64]int
}

// NewMaxDistinct creates a MaxDistinct constraint.
func NewMaxDistinct(n int) (*MaxDistinct, error) {
	if n < 0 {
		return nil, fmt.Errorf("max distinct %d: %w", n, ErrInvalidLimit)
	}
	return &MaxDistinct{n: n, freq: make(map[int64]int)}, nil
}

func (c *MaxDistinct) Add(v int64) error {
	c.freq[v]++
	return nil
}

func (c *MaxDistinct) Remove(v int64) {
	if c.freq[v]--; c.freq[v] <= 0 {
		delete(c.freq, v)
	}
}

func (c *MaxDistinct) Exceeded() bool  { return len(c.freq) > c.n }
func (c *MaxDistinct) Satisfied() bool { return len(c.freq) <= c.n }
func (c *MaxDistinct) Metric() int64   { return int64(len(c.freq)) }
func (c *MaxDistinct) Reset()          { clear(c.freq) }

// sumWindow is the running sum shared by the sum constraints.
type sumWindow struct {
	sum int64
}

func (s *sumWindow) add(v int64) error {
	if v < 0 {
		return fmt.Errorf("value %d: %w", v, ErrNegativeValue)
	}
	sum, ok := prefix.Add(s.sum, v)
	if !ok {
		return fmt.Errorf("window sum: %w", prefix.ErrOverflow)
	}
	s.sum = sum
	return nil
}

// SumAtMost holds windows of non-negative values whose sum is <= Limit.
type SumAtMost struct {
	sumWindow
	limit int64
}

// NewSumAtMost creates a SumAtMost constraint.
func NewSumAtMost(limit int64) *SumAtMost {
	return &SumAtMost{limit: limit}
}

func (c *SumAtMost) Add(v int64) error { return c.add(v) }
func (c *SumAtMost) Remove(v int64)    { c.sum -= v }
func (c *SumAtMost) Exceeded() bool    { return c.sum > c.limit }
func (c *SumAtMost) Satisfied() bool   { return c.sum <= c.limit }
func (c *SumAtMost) Metric() int64     { return c.sum }
func (c *SumAtMost) Reset()            { c.sum = 0 }

// SumAtLeast accepts windows of non-negative values whose sum is >= Limit.
// It never forces contraction; it is meant for shortest-window searches.
type SumAtLeast struct {
	sumWindow
	limit int64
}

// NewSumAtLeast creates a SumAtLeast constraint.
func NewSumAtLeast(limit int64) *SumAtLeast {
	return &SumAtLeast{limit: limit}
}

func (c *SumAtLeast) Add(v int64) error { return c.add(v) }
func (c *SumAtLeast) Remove(v int64)    { c.sum -= v }
func (c *SumAtLeast) Exceeded() bool    { return false }
func (c *SumAtLeast) Satisfied() bool   { return c.sum >= c.limit }
func (c *SumAtLeast) Metric() int64     { return c.sum }
func (c *SumAtLeast) Reset()            { c.sum = 0 }

// frequencyTable counts window symbols per alphabet slot against a target.
type frequencyTable struct {
	alphabet Alphabet
	target   []int
	counts   []int
	required int // slots with a positive target
	total    int // sum of targets
	length   int // values in the window
	foreign  int // values with no slot or a zero target
	over     int // slots whose count exceeds the target
	covered  int // required slots whose count reached the target
}

func newFrequencyTable(alphabet Alphabet, target map[int64]int) (frequencyTable, error) {
	t := frequencyTable{
		alphabet: alphabet,
		target:   make([]int, alphabet.Size()),
		counts:   make([]int, alphabet.Size()),
	}
	for sym, n := range target {
		slot, ok := alphabet.Slot(sym)
		if !ok {
			return frequencyTable{}, fmt.Errorf("target symbol %d: %w", sym, ErrUnknownSymbol)
		}
		if n < 0 {
			return frequencyTable{}, fmt.Errorf("target count %d for symbol %d: %w", n, sym, ErrInvalidLimit)
		}
		t.target[slot] = n
		if n > 0 {
			t.required++
			t.total += n
		}
	}
	return t, nil
}

func (t *frequencyTable) add(v int64) {
	t.length++
	slot, ok := t.alphabet.Slot(v)
	if !ok || t.target[slot] == 0 {
		t.foreign++
		return
	}
	t.counts[slot]++
	switch t.counts[slot] - t.target[slot] {
	case 0:
		t.covered++
	case 1:
		t.over++
	}
}

func (t *frequencyTable) remove(v int64) {
	t.length--
	slot, ok := t.alphabet.Slot(v)
	if !ok || t.target[slot] == 0 {
		t.foreign--
		return
	}
	switch t.counts[slot] - t.target[slot] {
	case 0:
		t.covered--
	case 1:
		t.over--
	}
	t.counts[slot]--
}

func (t *frequencyTable) reset() {
	clear(t.counts)
	t.length, t.foreign, t.over, t.covered = 0, 0, 0, 0
}

// ExactFrequencyMatch accepts windows whose symbol counts equal the target
// exactly, i.e. permutations of the target multiset.
type ExactFrequencyMatch struct {
	table frequencyTable
}

// NewExactFrequencyMatch creates an ExactFrequencyMatch constraint.
func NewExactFrequencyMatch(alphabet Alphabet, target map[int64]int) (*ExactFrequencyMatch, error) {
	t, err := newFrequencyTable(alphabet, target)
	if err != nil {
		return nil, err
	}
	return &ExactFrequencyMatch{table: t}, nil
}

func (c *ExactFrequencyMatch) Add(v int64) error {
	c.table.add(v)
	return nil
}

func (c *ExactFrequencyMatch) Remove(v int64) { c.table.remove(v) }

func (c *ExactFrequencyMatch) Exceeded() bool {
	return c.table.foreign > 0 || c.table.over > 0
}

func (c *ExactFrequencyMatch) Satisfied() bool {
	return c.table.total > 0 && !c.Exceeded() && c.table.covered == c.table.required
}

func (c *ExactFrequencyMatch) Metric() int64 { return int64(c.table.length) }
func (c *ExactFrequencyMatch) Reset()        { c.table.reset() }

// CoversFrequencies accepts windows holding at least the target count of
// every target symbol; other symbols are allowed.
type CoversFrequencies struct {
	table frequencyTable
}

// NewCoversFrequencies creates a CoversFrequencies constraint.
func NewCoversFrequencies(alphabet Alphabet, target map[int64]int) (*CoversFrequencies, error) {
	t, err := newFrequencyTable(alphabet, target)
	if err != nil {
		return nil, err
	}
	return &CoversFrequencies{table: t}, nil
}

func (c *CoversFrequencies) Add(v int64) error {
	c.table.add(v)
	return nil
}

func (c *CoversFrequencies) Remove(v int64) { c.table.remove(v) }
func (c *CoversFrequencies) Exceeded() bool { return false }

func (c *CoversFrequencies) Satisfied() bool {
	return c.table.required > 0 && c.table.covered == c.table.required
}

func (c *CoversFrequencies) Metric() int64 { return int64(c.table.length) }
func (c *CoversFrequencies) Reset()        { c.table.reset() }
