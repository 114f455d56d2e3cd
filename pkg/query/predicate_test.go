package query

import (
	"errors"
	"testing"

	"github.com/eunmann/rangeagg/pkg/window"
)

func TestLongestWindowSatisfying(t *testing.T) {
	q := New(newSliceSource(t, []int64{1, 2, 1, 2, 3, 3, 3, 3}))

	res, err := q.LongestWindowSatisfying(PredicateSpec{Kind: MaxDistinct, Limit: 2})
	if err != nil {
		t.Fatalf("LongestWindowSatisfying failed: %v", err)
	}
	if !res.Found || res.Left != 3 || res.Right != 8 {
		t.Errorf("longest max-distinct = %+v, want [3, 8)", res)
	}

	q = New(newSliceSource(t, []int64{3, 1, 2, 1, 4, 0, 0}))
	res, err = q.LongestWindowSatisfying(PredicateSpec{Kind: SumAtMost, Limit: 5})
	if err != nil {
		t.Fatalf("LongestWindowSatisfying failed: %v", err)
	}
	if !res.Found || res.Left != 3 || res.Right != 7 || res.Metric != 5 {
		t.Errorf("longest sum-at-most = %+v, want [3, 7) sum 5", res)
	}
}

func TestShortestWindowSatisfying(t *testing.T) {
	q := New(newSliceSource(t, []int64{2, 3, 1, 2, 4, 3}))

	res, err := q.ShortestWindowSatisfying(PredicateSpec{Kind: SumAtLeast, Limit: 7})
	if err != nil {
		t.Fatalf("ShortestWindowSatisfying failed: %v", err)
	}
	if !res.Found || res.Left != 4 || res.Right != 6 {
		t.Errorf("shortest sum-at-least = %+v, want [4, 6)", res)
	}

	upper, err := window.NewRangeAlphabet('A', 'Z')
	if err != nil {
		t.Fatalf("NewRangeAlphabet failed: %v", err)
	}
	q = New(newSliceSource(t, window.Symbols("ADOBECODEBANC")))
	res, err = q.ShortestWindowSatisfying(PredicateSpec{
		Kind:     CoversFrequencies,
		Alphabet: upper,
		Target:   window.Counts("ABC"),
	})
	if err != nil {
		t.Fatalf("ShortestWindowSatisfying failed: %v", err)
	}
	if !res.Found || res.Left != 9 || res.Right != 13 {
		t.Errorf("shortest cover = %+v, want [9, 13)", res)
	}
}

func TestFirstWindowSatisfying(t *testing.T) {
	spec := PredicateSpec{Kind: ExactCharFrequencyMatch, Target: window.Counts("abc")}

	res, err := New(newSliceSource(t, window.Symbols("cbaebabacd"))).FirstWindowSatisfying(spec)
	if err != nil {
		t.Fatalf("FirstWindowSatisfying failed: %v", err)
	}
	if !res.Found || res.Left != 0 || res.Right != 3 {
		t.Errorf("first anagram = %+v, want [0, 3)", res)
	}

	spec.Target = window.Counts("ab")
	res, err = New(newSliceSource(t, window.Symbols("eidboaoo"))).FirstWindowSatisfying(spec)
	if err != nil {
		t.Fatalf("FirstWindowSatisfying failed: %v", err)
	}
	if res.Found {
		t.Errorf("unexpected anagram window %+v", res)
	}
}

func TestPredicateErrors(t *testing.T) {
	q := New(newSliceSource(t, []int64{1, -2, 3}))

	if _, err := q.LongestWindowSatisfying(PredicateSpec{Kind: SumAtMost, Limit: 4}); !errors.Is(err, window.ErrNegativeValue) {
		t.Errorf("negative value error = %v, want ErrNegativeValue", err)
	}
	if _, err := q.LongestWindowSatisfying(PredicateSpec{Kind: MaxDistinct, Limit: -1}); !errors.Is(err, window.ErrInvalidLimit) {
		t.Errorf("negative limit error = %v, want ErrInvalidLimit", err)
	}
	if _, err := q.LongestWindowSatisfying(PredicateSpec{Kind: PredicateKind(99)}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown kind error = %v, want ErrInvalidArgument", err)
	}
	if got := PredicateKind(99).String(); got != "predicate(99)" {
		t.Errorf("String() = %q", got)
	}
}
