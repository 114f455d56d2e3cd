package window

// Deque is a monotonic double-ended queue of sequence indices whose values
// are strictly decreasing from front to back. The front always holds the
// index of the window maximum.
type Deque struct {
	entries []dequeEntry
	head    int
}

type dequeEntry struct {
	idx int
	val int64
}

// PushBack inserts index i with value v, first popping every back entry
// whose value is <= v. Ties keep the newest index, which survives longest.
func (d *Deque) PushBack(i int, v int64) {
	for len(d.entries) > d.head && d.entries[len(d.entries)-1].val <= v {
		d.entries = d.entries[:len(d.entries)-1]
	}
	d.entries = append(d.entries, dequeEntry{idx: i, val: v})
}

// EvictBefore pops front entries whose index fell out of [left, ...).
func (d *Deque) EvictBefore(left int) {
	for d.head < len(d.entries) && d.entries[d.head].idx < left {
		d.head++
	}
	d.compact()
}

// Front returns the index and value at the front.
func (d *Deque) Front() (idx int, val int64, ok bool) {
	if d.head >= len(d.entries) {
		return 0, 0, false
	}
	e := d.entries[d.head]
	return e.idx, e.val, true
}

// Len returns the number of live entries.
func (d *Deque) Len() int {
	return len(d.entries) - d.head
}

// Reset empties the deque.
func (d *Deque) Reset() {
	d.entries = d.entries[:0]
	d.head = 0
}

// compact reclaims the consumed front once it dominates the slice.
func (d *Deque) compact() {
	if d.head == 0 || d.head < len(d.entries)/2 {
		return
	}
	n := copy(d.entries, d.entries[d.head:])
	d.entries = d.entries[:n]
	d.head = 0
}
