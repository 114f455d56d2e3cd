package format

import (
	"fmt"
	"os"

	"github.com/relab/bbhash"
)

// FirstOccurrenceBuilder collects the first position of every distinct
// prefix-sum value. Positions must be added in increasing order.
type FirstOccurrenceBuilder struct {
	keys      []int64
	positions []uint64
	seen      map[int64]struct{}
}

// NewFirstOccurrenceBuilder creates a builder sized for about capacity
// distinct sums.
func NewFirstOccurrenceBuilder(capacity int) *FirstOccurrenceBuilder {
	return &FirstOccurrenceBuilder{
		keys:      make([]int64, 0, capacity),
		positions: make([]uint64, 0, capacity),
		seen:      make(map[int64]struct{}, capacity),
	}
}

// Add records pos for sum unless sum was already seen.
func (b *FirstOccurrenceBuilder) Add(sum int64, pos uint64) {
	if _, ok := b.seen[sum]; ok {
		return
	}
	b.seen[sum] = struct{}{}
	b.keys = append(b.keys, sum)
	b.positions = append(b.positions, pos)
}

// Count returns the number of distinct sums added.
func (b *FirstOccurrenceBuilder) Count() int {
	return len(b.keys)
}

// Build constructs the perfect hash and orders the key and position columns
// by hash slot.
func (b *FirstOccurrenceBuilder) Build() (*FirstOccurrenceLayout, error) {
	layout := &FirstOccurrenceLayout{
		Keys:      make([]int64, len(b.keys)),
		Positions: make([]uint64, len(b.keys)),
	}
	if len(b.keys) == 0 {
		return layout, nil
	}

	hashed := make([]uint64, len(b.keys))
	for i, k := range b.keys {
		hashed[i] = mixKey(k)
	}

	mph, err := bbhash.New(hashed, bbhash.Gamma(2.0))
	if err != nil {
		return nil, fmt.Errorf("build MPHF: %w", err)
	}

	// BBHash returns 1-indexed slots.
	for i, k := range b.keys {
		slot := mph.Find(hashed[i])
		if slot == 0 || slot > uint64(len(b.keys)) {
			return nil, fmt.Errorf("MPHF lookup failed for sum %d", k)
		}
		layout.Keys[slot-1] = k
		layout.Positions[slot-1] = b.positions[i]
	}
	layout.mph = mph
	return layout, nil
}

// FirstOccurrenceLayout is a built table ready to be written. Keys and
// Positions are indexed by hash slot.
type FirstOccurrenceLayout struct {
	mph       *bbhash.BBHash2
	Keys      []int64
	Positions []uint64
}

// WriteMPH writes the serialized hash function. An empty table writes an
// empty file.
func (l *FirstOccurrenceLayout) WriteMPH(path string) error {
	if l.mph == nil {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("write empty mph: %w", err)
		}
		return nil
	}
	data, err := l.mph.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal MPHF: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write MPHF: %w", err)
	}
	return nil
}

// WriteKeys writes the key-verification column.
func (l *FirstOccurrenceLayout) WriteKeys(path string) error {
	return WriteI64Column(path, len(l.Keys), func(i int) int64 { return l.Keys[i] })
}

// WritePositions writes the position column.
func (l *FirstOccurrenceLayout) WritePositions(path string) error {
	return WriteU64Column(path, l.Positions)
}

// FirstOccurrenceTable maps a prefix-sum value to the first position it
// occurs at.
//
// Thread Safety: lookups are safe from multiple goroutines.
type FirstOccurrenceTable struct {
	mph       *bbhash.BBHash2
	keys      *ArrayReader
	positions *ArrayReader
	count     uint64
}

// OpenFirstOccurrenceTable opens a table written by FirstOccurrenceLayout.
func OpenFirstOccurrenceTable(mphPath, keysPath, posPath string) (*FirstOccurrenceTable, error) {
	keys, err := OpenArray(keysPath)
	if err != nil {
		return nil, fmt.Errorf("open keys: %w", err)
	}
	positions, err := OpenArray(posPath)
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("open positions: %w", err)
	}
	if keys.Count() != positions.Count() {
		keys.Close()
		positions.Close()
		return nil, fmt.Errorf("keys %d vs positions %d: %w", keys.Count(), positions.Count(), ErrManifestMismatch)
	}

	t := &FirstOccurrenceTable{keys: keys, positions: positions, count: keys.Count()}
	if t.count == 0 {
		return t, nil
	}

	data, err := os.ReadFile(mphPath)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("read mph file: %w", err)
	}
	mph := &bbhash.BBHash2{}
	if err := mph.UnmarshalBinary(data); err != nil {
		t.Close()
		return nil, fmt.Errorf("unmarshal MPHF: %w", err)
	}
	t.mph = mph
	return t, nil
}

// Lookup returns the first position of sum, or ok=false if sum never
// occurs.
func (t *FirstOccurrenceTable) Lookup(sum int64) (pos uint64, ok bool) {
	if t.count == 0 || t.mph == nil {
		return 0, false
	}
	slot := t.mph.Find(mixKey(sum))
	if slot == 0 || slot > t.count {
		return 0, false
	}
	// Keys outside the build set land on arbitrary slots.
	if t.keys.UnsafeGetI64(slot-1) != sum {
		return 0, false
	}
	return t.positions.UnsafeGetU64(slot - 1), true
}

// Count returns the number of distinct sums.
func (t *FirstOccurrenceTable) Count() uint64 {
	return t.count
}

// Close releases resources.
func (t *FirstOccurrenceTable) Close() error {
	var firstErr error
	if t.keys != nil {
		if err := t.keys.Close(); err != nil {
			firstErr = err
		}
	}
	if t.positions != nil {
		if err := t.positions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// mixKey spreads prefix sums, which are often small and dense, over the
// key space. It is a bijection, so distinct sums stay distinct.
func mixKey(sum int64) uint64 {
	z := uint64(sum) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
