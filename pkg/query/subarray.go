package query

import (
	"fmt"

	"github.com/eunmann/rangeagg/pkg/prefix"
	"github.com/eunmann/rangeagg/pkg/remainder"
	"github.com/eunmann/rangeagg/pkg/window"
)

// CountSubarraysWithSum counts the non-empty subarrays summing to target.
func (q *Querier) CountSubarraysWithSum(target int64) (int64, error) {
	idx := remainder.New(remainder.CountAll)
	idx.Seed()

	var count int64
	for j := 1; j <= q.src.Len(); j++ {
		p := q.src.Prefix(j)
		// An unrepresentable key can match no recorded prefix.
		if key, ok := prefix.Sub(p, target); ok {
			count += int64(idx.Lookup(key).Count)
		}
		idx.Record(p, j)
	}
	return count, nil
}

// CountSubarraysDivisibleBy counts the non-empty subarrays whose sum is a
// multiple of k.
func (q *Querier) CountSubarraysDivisibleBy(k int64) (int64, error) {
	if k == 0 {
		return 0, fmt.Errorf("divisor 0: %w", remainder.ErrZeroModulus)
	}
	idx := remainder.New(remainder.CountAll)
	idx.Seed()

	var count int64
	for j := 1; j <= q.src.Len(); j++ {
		key, err := remainder.NormalizeMod(q.src.Prefix(j), k)
		if err != nil {
			return 0, err
		}
		m, err := idx.RecordAndQuery(key, j, remainder.CountAll)
		if err != nil {
			return 0, err
		}
		count += int64(m.Count)
	}
	return count, nil
}

// LongestSubarrayWithSum returns the longest non-empty window summing to
// target. Metric holds the target. Sources with a precomputed
// first-occurrence table are answered from it without building an index.
func (q *Querier) LongestSubarrayWithSum(target int64) (window.Result, error) {
	first := q.firstOccurrences()

	var best window.Result
	for j := 1; j <= q.src.Len(); j++ {
		p := q.src.Prefix(j)
		key, ok := prefix.Sub(p, target)
		if ok {
			if i, found := first(key, j); found && j-i > best.Length() {
				best = window.Result{Left: i, Right: j, Metric: target, Found: true}
			}
		}
	}
	return best, nil
}

// firstOccurrences returns a lookup of the first prefix position < j
// holding a given sum. Without a precomputed table it builds a
// first-occurrence index incrementally; calls must then come with
// increasing j.
func (q *Querier) firstOccurrences() func(sum int64, j int) (int, bool) {
	if table, ok := q.src.(FirstOccurrences); ok {
		return func(sum int64, j int) (int, bool) {
			pos, found := table.FirstOccurrence(sum)
			return pos, found && pos < j
		}
	}

	idx := remainder.New(remainder.FirstOccurrenceOnly)
	idx.Seed()
	recorded := 0
	return func(sum int64, j int) (int, bool) {
		for recorded < j-1 {
			recorded++
			idx.Record(q.src.Prefix(recorded), recorded)
		}
		m := idx.Lookup(sum)
		return m.Position, m.Found
	}
}

// LongestBalanced returns the longest window holding as many a's as b's,
// with at least one of each. Metric holds the count of a (and of b).
func (q *Querier) LongestBalanced(a, b int64) (window.Result, error) {
	if a == b {
		return window.Result{}, fmt.Errorf("balanced symbols %d and %d are equal: %w", a, b, ErrInvalidArgument)
	}

	idx := remainder.New(remainder.FirstOccurrenceOnly)
	idx.Seed()

	n := q.src.Len()
	countA := make([]int, n+1)
	var best window.Result
	var balance int64
	for j := 1; j <= n; j++ {
		countA[j] = countA[j-1]
		switch q.src.Value(j - 1) {
		case a:
			balance++
			countA[j]++
		case b:
			balance--
		}

		m, err := idx.RecordAndQuery(balance, j, remainder.FirstOccurrenceOnly)
		if err != nil {
			return window.Result{}, err
		}
		if !m.Found || j-m.Position <= best.Length() {
			continue
		}
		// A window of neither symbol is balanced only vacuously.
		pairs := countA[j] - countA[m.Position]
		if pairs == 0 {
			continue
		}
		best = window.Result{Left: m.Position, Right: j, Metric: int64(pairs), Found: true}
	}
	return best, nil
}

// HasSubarrayMultipleOf returns the first window of length >= 2 whose sum
// is a multiple of k.
func (q *Querier) HasSubarrayMultipleOf(k int64) (window.Result, error) {
	if k == 0 {
		return window.Result{}, fmt.Errorf("divisor 0: %w", remainder.ErrZeroModulus)
	}
	idx := remainder.New(remainder.FirstOccurrenceOnly)
	idx.Seed()

	for j := 1; j <= q.src.Len(); j++ {
		key, err := remainder.NormalizeMod(q.src.Prefix(j), k)
		if err != nil {
			return window.Result{}, err
		}
		m, err := idx.RecordAndQuery(key, j, remainder.FirstOccurrenceOnly)
		if err != nil {
			return window.Result{}, err
		}
		if m.Found && j-m.Position >= 2 {
			sum, err := q.RangeSum(m.Position, j)
			if err != nil {
				return window.Result{}, err
			}
			return window.Result{Left: m.Position, Right: j, Metric: sum, Found: true}, nil
		}
	}
	return window.Result{}, nil
}

// MinOperationsToReduce returns the fewest values to remove from the two
// ends so that the removed values sum to x. The result window is the kept
// middle part and Metric holds the number of removals.
func (q *Querier) MinOperationsToReduce(x int64) (window.Result, error) {
	n := q.src.Len()
	keep, ok := prefix.Sub(q.src.Prefix(n), x)
	if !ok {
		return window.Result{}, nil
	}

	res, err := q.LongestSubarrayWithSum(keep)
	if err != nil {
		return window.Result{}, err
	}
	if res.Found {
		return window.Result{Left: res.Left, Right: res.Right, Metric: int64(n - res.Length()), Found: true}, nil
	}
	if keep == 0 {
		// Removing everything leaves the empty window.
		return window.Result{Metric: int64(n), Found: true}, nil
	}
	return window.Result{}, nil
}
