package engine

import (
	"fmt"

	"github.com/eunmann/rangeagg/pkg/window"
)

// WindowKind distinguishes fixed from variable standing windows.
type WindowKind string

const (
	KindFixed    WindowKind = "fixed"
	KindVariable WindowKind = "variable"
)

// Standing is the current state of a standing window.
type Standing struct {
	Name  string
	Kind  WindowKind
	Left  int
	Right int

	// Fixed windows: the most recent aggregate and how many were emitted.
	Last    window.Aggregate
	Emitted int

	// Variable windows: the best window so far.
	Best window.Result

	// Err is the sticky error that stopped the window, if any.
	Err error
}

type standingWindow struct {
	name     string
	fixed    *window.Fixed
	variable *window.Variable
	emit     func(window.Aggregate)
	last     window.Aggregate
	emitted  int
}

func (sw *standingWindow) push(i int, v int64) error {
	if sw.variable != nil {
		return sw.variable.Push(i, v)
	}
	agg, ok, err := sw.fixed.Push(i, v)
	if err != nil || !ok {
		return err
	}
	sw.last = agg
	sw.emitted++
	if sw.emit != nil {
		sw.emit(agg)
	}
	return nil
}

func (sw *standingWindow) reset() {
	if sw.variable != nil {
		sw.variable.Reset()
		return
	}
	sw.fixed.Reset()
	sw.last = window.Aggregate{}
	sw.emitted = 0
}

func (sw *standingWindow) state() Standing {
	if sw.variable != nil {
		left, right := sw.variable.Bounds()
		return Standing{
			Name:  sw.name,
			Kind:  KindVariable,
			Left:  left,
			Right: right,
			Best:  sw.variable.Result(),
			Err:   sw.variable.Err(),
		}
	}
	left, right := sw.fixed.Bounds()
	return Standing{
		Name:    sw.name,
		Kind:    KindFixed,
		Left:    left,
		Right:   right,
		Last:    sw.last,
		Emitted: sw.emitted,
		Err:     sw.fixed.Err(),
	}
}

// TrackFixed registers a standing fixed window of size k. emit, if not
// nil, is called on the writer goroutine for every window position. Values
// already in the engine are replayed first.
func (e *Engine) TrackFixed(name string, k int, emit func(window.Aggregate)) error {
	w, err := window.NewFixed(k, e.seq)
	if err != nil {
		return fmt.Errorf("track %q: %w", name, err)
	}
	return e.register(&standingWindow{name: name, fixed: w, emit: emit})
}

// TrackVariable registers a standing variable window. Values already in
// the engine are replayed first.
func (e *Engine) TrackVariable(name string, c window.Constraint, obj window.Objective) error {
	return e.register(&standingWindow{name: name, variable: window.NewVariable(c, obj, e.seq)})
}

func (e *Engine) register(sw *standingWindow) error {
	if _, ok := e.byName[sw.name]; ok {
		return fmt.Errorf("track %q: %w", sw.name, ErrDuplicateWindow)
	}
	for i := 0; i < e.seq.Len(); i++ {
		if err := sw.push(i, e.seq.At(i)); err != nil {
			return fmt.Errorf("track %q: replay index %d: %w", sw.name, i, err)
		}
	}
	e.standing = append(e.standing, sw)
	e.byName[sw.name] = sw
	return nil
}

// Untrack removes a standing window.
func (e *Engine) Untrack(name string) error {
	if _, ok := e.byName[name]; !ok {
		return fmt.Errorf("untrack %q: %w", name, ErrUnknownWindow)
	}
	delete(e.byName, name)
	for i, sw := range e.standing {
		if sw.name == name {
			e.standing = append(e.standing[:i], e.standing[i+1:]...)
			break
		}
	}
	return nil
}

// Standing returns the state of the named standing window.
func (e *Engine) Standing(name string) (Standing, bool) {
	sw, ok := e.byName[name]
	if !ok {
		return Standing{}, false
	}
	return sw.state(), true
}

// StandingNames returns registered window names in registration order.
func (e *Engine) StandingNames() []string {
	names := make([]string, len(e.standing))
	for i, sw := range e.standing {
		names[i] = sw.name
	}
	return names
}
