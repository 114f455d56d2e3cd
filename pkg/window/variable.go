package window

import (
	"fmt"
)

// Objective selects which candidate window a Variable keeps.
type Objective int

const (
	// Longest keeps the longest satisfying window.
	Longest Objective = iota
	// Shortest keeps the shortest non-empty satisfying window.
	Shortest
	// First keeps the first satisfying window found.
	First
)

func (o Objective) String() string {
	switch o {
	case Longest:
		return "longest"
	case Shortest:
		return "shortest"
	case First:
		return "first"
	default:
		return fmt.Sprintf("objective(%d)", int(o))
	}
}

// Result is the best window found so far. Found is false when no window
// satisfied the constraint; the other fields are then meaningless.
type Result struct {
	Left   int
	Right  int
	Metric int64
	Found  bool
}

// Length returns Right - Left.
func (r Result) Length() int {
	return r.Right - r.Left
}

// Variable is a predicate-driven window. Every push expands right; left
// then advances while the constraint demands it. Ties on length keep the
// window found first, which is also the one with the lowest left.
type Variable struct {
	c     Constraint
	obj   Objective
	src   Source
	left  int
	right int
	best  Result
	err   error
}

// NewVariable creates a variable window over src.
func NewVariable(c Constraint, obj Objective, src Source) *Variable {
	return &Variable{c: c, obj: obj, src: src}
}

// Push feeds value v at index i. A constraint error is sticky: the window
// stops advancing and every later Push returns the same error.
func (w *Variable) Push(i int, v int64) error {
	if w.err != nil {
		return w.err
	}
	if i != w.right {
		return fmt.Errorf("push index %d, want %d: %w", i, w.right, ErrOutOfOrder)
	}
	if w.obj == First && w.best.Found {
		w.right++
		w.left = w.right
		return nil
	}
	if err := w.c.Add(v); err != nil {
		w.err = fmt.Errorf("push index %d: %w", i, err)
		return w.err
	}
	w.right++

	for w.left < w.right && w.c.Exceeded() {
		w.shrink()
	}

	if w.obj == Shortest {
		for w.left < w.right && w.c.Satisfied() {
			w.consider()
			w.shrink()
		}
		return nil
	}

	if w.left < w.right && w.c.Satisfied() {
		w.consider()
	}
	return nil
}

func (w *Variable) shrink() {
	w.c.Remove(w.src.At(w.left))
	w.left++
}

func (w *Variable) consider() {
	length := w.right - w.left
	switch {
	case !w.best.Found:
	case w.obj == Longest && length > w.best.Length():
	case w.obj == Shortest && length < w.best.Length():
	default:
		return
	}
	w.best = Result{Left: w.left, Right: w.right, Metric: w.c.Metric(), Found: true}
}

// Bounds returns the current [left, right).
func (w *Variable) Bounds() (left, right int) {
	return w.left, w.right
}

// Result returns the best window found so far.
func (w *Variable) Result() Result {
	return w.best
}

// Err returns the sticky error, if any.
func (w *Variable) Err() error {
	return w.err
}

// Objective returns the window's objective.
func (w *Variable) Objective() Objective {
	return w.obj
}

// Reset returns the window to [0, 0) and forgets the best result.
func (w *Variable) Reset() {
	w.c.Reset()
	w.left, w.right = 0, 0
	w.best = Result{}
	w.err = nil
}
