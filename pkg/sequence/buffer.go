// Package sequence provides the append-only value buffer every other
// aggregation structure is derived from.
package sequence

import (
	"errors"
	"fmt"
)

// ErrOutOfRange indicates an index that has not been assigned yet.
var ErrOutOfRange = errors.New("index out of range")

// Buffer is an append-only sequence of int64 values with stable indices.
//
// Thread Safety: Buffer has a single writer. Views returned by View may be
// read from other goroutines while the writer keeps appending, because
// entries below a view's length are never mutated.
type Buffer struct {
	values     []int64
	generation uint64
}

// NewBuffer creates an empty buffer with room for capacity values.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{values: make([]int64, 0, capacity)}
}

// Append adds v and returns the index assigned to it.
func (b *Buffer) Append(v int64) int {
	b.values = append(b.values, v)
	return len(b.values) - 1
}

// Get returns the value at index i.
func (b *Buffer) Get(i int) (int64, error) {
	if i < 0 || i >= len(b.values) {
		return 0, fmt.Errorf("get %d (len %d): %w", i, len(b.values), ErrOutOfRange)
	}
	return b.values[i], nil
}

// At returns the value at index i. Callers must have validated i.
func (b *Buffer) At(i int) int64 {
	return b.values[i]
}

// Len returns the number of values appended since the last Reset.
func (b *Buffer) Len() int {
	return len(b.values)
}

// Generation is bumped by every Reset. Derived structures record it to
// detect that their indices were invalidated.
func (b *Buffer) Generation() uint64 {
	return b.generation
}

// Reset discards all values. A fresh backing array is allocated so that
// views taken before the reset keep reading the old values.
func (b *Buffer) Reset() {
	b.values = make([]int64, 0, cap(b.values))
	b.generation++
}

// View returns a read-only point-in-time view of the buffer.
func (b *Buffer) View() View {
	return View{values: b.values[:len(b.values):len(b.values)], generation: b.generation}
}

// View is an immutable prefix of a Buffer.
type View struct {
	values     []int64
	generation uint64
}

// Len returns the number of values visible in the view.
func (v View) Len() int {
	return len(v.values)
}

// Get returns the value at index i.
func (v View) Get(i int) (int64, error) {
	if i < 0 || i >= len(v.values) {
		return 0, fmt.Errorf("get %d (len %d): %w", i, len(v.values), ErrOutOfRange)
	}
	return v.values[i], nil
}

// At returns the value at index i without bounds checking beyond the
// runtime's own. Callers must have validated i against Len.
func (v View) At(i int) int64 {
	return v.values[i]
}

// Generation returns the buffer generation the view was taken from.
func (v View) Generation() uint64 {
	return v.generation
}
