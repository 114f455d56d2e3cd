package query

import (
	"fmt"

	"github.com/eunmann/rangeagg/pkg/window"
)

// PredicateKind names a variable-window constraint.
type PredicateKind int

const (
	// MaxDistinct: at most Limit distinct values.
	MaxDistinct PredicateKind = iota + 1
	// SumAtMost: window sum <= Limit, non-negative values.
	SumAtMost
	// ExactCharFrequencyMatch: symbol counts equal Target exactly.
	ExactCharFrequencyMatch
	// SumAtLeast: window sum >= Limit, non-negative values.
	SumAtLeast
	// CoversFrequencies: at least Target count of every target symbol.
	CoversFrequencies
)

func (k PredicateKind) String() string {
	switch k {
	case MaxDistinct:
		return "max-distinct"
	case SumAtMost:
		return "sum-at-most"
	case ExactCharFrequencyMatch:
		return "exact-frequency-match"
	case SumAtLeast:
		return "sum-at-least"
	case CoversFrequencies:
		return "covers-frequencies"
	default:
		return fmt.Sprintf("predicate(%d)", int(k))
	}
}

// PredicateSpec configures a variable-window search.
type PredicateSpec struct {
	Kind PredicateKind
	// Limit is the bound for MaxDistinct, SumAtMost and SumAtLeast.
	Limit int64
	// Alphabet maps symbols for the frequency kinds. Defaults to
	// lowercase ASCII.
	Alphabet window.Alphabet
	// Target holds per-symbol counts for the frequency kinds.
	Target map[int64]int
}

func (s PredicateSpec) constraint() (window.Constraint, error) {
	alphabet := s.Alphabet
	if alphabet == nil {
		alphabet = window.LowercaseASCII()
	}

	switch s.Kind {
	case MaxDistinct:
		return window.NewMaxDistinct(int(s.Limit))
	case SumAtMost:
		return window.NewSumAtMost(s.Limit), nil
	case SumAtLeast:
		return window.NewSumAtLeast(s.Limit), nil
	case ExactCharFrequencyMatch:
		return window.NewExactFrequencyMatch(alphabet, s.Target)
	case CoversFrequencies:
		return window.NewCoversFrequencies(alphabet, s.Target)
	default:
		return nil, fmt.Errorf("predicate kind %s: %w", s.Kind, ErrInvalidArgument)
	}
}

// LongestWindowSatisfying returns the longest window meeting spec.
func (q *Querier) LongestWindowSatisfying(spec PredicateSpec) (window.Result, error) {
	return q.scan(spec, window.Longest)
}

// ShortestWindowSatisfying returns the shortest non-empty window meeting
// spec.
func (q *Querier) ShortestWindowSatisfying(spec PredicateSpec) (window.Result, error) {
	return q.scan(spec, window.Shortest)
}

// FirstWindowSatisfying returns the first window meeting spec in scan
// order.
func (q *Querier) FirstWindowSatisfying(spec PredicateSpec) (window.Result, error) {
	return q.scan(spec, window.First)
}

func (q *Querier) scan(spec PredicateSpec, obj window.Objective) (window.Result, error) {
	c, err := spec.constraint()
	if err != nil {
		return window.Result{}, err
	}

	w := window.NewVariable(c, obj, values{q.src})
	for i := 0; i < q.src.Len(); i++ {
		if err := w.Push(i, q.src.Value(i)); err != nil {
			return window.Result{}, fmt.Errorf("%s %s window: %w", obj, spec.Kind, err)
		}
		if obj == window.First && w.Result().Found {
			break
		}
	}
	return w.Result(), nil
}
