package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/query"
	"github.com/eunmann/rangeagg/pkg/snapshot"
	"github.com/eunmann/rangeagg/pkg/window"
)

// queryOp runs one query and writes its answer.
type queryOp struct {
	args []string
	help string
	run  func(q *query.Querier, args []int64, w io.Writer) error
}

var queryOps = map[string]queryOp{
	"range-sum": {
		args: []string{"L", "R"},
		help: "sum of values[L:R]",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			sum, err := q.RangeSum(int(a[0]), int(a[1]))
			if err != nil {
				return err
			}
			fmt.Fprintln(w, sum)
			return nil
		},
	},
	"window-max": {
		args: []string{"K"},
		help: "max, sum and distinct count of every size-K window",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			it, err := q.MaxPerFixedWindow(int(a[0]))
			if err != nil {
				return err
			}
			for agg := range it.All() {
				fmt.Fprintf(w, "[%d, %d) max %d sum %d distinct %d\n", agg.Left, agg.Right, agg.Max, agg.Sum, agg.Distinct)
			}
			return it.Err()
		},
	},
	"max-sum-window": {
		args: []string{"K"},
		help: "size-K window with the largest sum",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			agg, err := q.MaxSumFixedWindow(int(a[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "[%d, %d) sum %d\n", agg.Left, agg.Right, agg.Sum)
			return nil
		},
	},
	"count-sum": {
		args: []string{"T"},
		help: "number of subarrays summing to T",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printCount(w)(q.CountSubarraysWithSum(a[0]))
		},
	},
	"count-div": {
		args: []string{"K"},
		help: "number of subarrays whose sum is a multiple of K",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printCount(w)(q.CountSubarraysDivisibleBy(a[0]))
		},
	},
	"longest-sum": {
		args: []string{"T"},
		help: "longest subarray summing to T",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.LongestSubarrayWithSum(a[0]))
		},
	},
	"longest-distinct": {
		args: []string{"N"},
		help: "longest window with at most N distinct values",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.LongestWindowSatisfying(query.PredicateSpec{Kind: query.MaxDistinct, Limit: a[0]}))
		},
	},
	"longest-sum-atmost": {
		args: []string{"N"},
		help: "longest window summing to at most N (non-negative values)",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.LongestWindowSatisfying(query.PredicateSpec{Kind: query.SumAtMost, Limit: a[0]}))
		},
	},
	"shortest-sum-atleast": {
		args: []string{"N"},
		help: "shortest window summing to at least N (non-negative values)",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.ShortestWindowSatisfying(query.PredicateSpec{Kind: query.SumAtLeast, Limit: a[0]}))
		},
	},
	"balanced": {
		args: []string{"A", "B"},
		help: "longest window with as many A values as B values",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.LongestBalanced(a[0], a[1]))
		},
	},
	"has-multiple": {
		args: []string{"K"},
		help: "first window of length >= 2 whose sum is a multiple of K",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.HasSubarrayMultipleOf(a[0]))
		},
	},
	"min-ops": {
		args: []string{"X"},
		help: "fewest values removed from both ends summing to X",
		run: func(q *query.Querier, a []int64, w io.Writer) error {
			return printResult(w)(q.MinOperationsToReduce(a[0]))
		},
	},
}

func printCount(w io.Writer) func(int64, error) error {
	return func(n int64, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(w, n)
		return nil
	}
}

func printResult(w io.Writer) func(window.Result, error) error {
	return func(r window.Result, err error) error {
		if err != nil {
			return err
		}
		if !r.Found {
			fmt.Fprintln(w, "not found")
			return nil
		}
		fmt.Fprintf(w, "[%d, %d) length %d metric %d\n", r.Left, r.Right, r.Length(), r.Metric)
		return nil
	}
}

func queryUsage() string {
	names := make([]string, 0, len(queryOps))
	for name := range queryOps {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString("query ops:")
	for _, name := range names {
		op := queryOps[name]
		fmt.Fprintf(&b, "\n  %-22s %s", strings.Join(append([]string{name}, op.args...), " "), op.help)
	}
	return b.String()
}

func runQuery(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	snapDir := fs.String("snapshot", "", "snapshot directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag("snapshot", *snapDir); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("missing query op: %w\n%s", ErrUsage, queryUsage())
	}
	name := rest[0]
	op, ok := queryOps[name]
	if !ok {
		return fmt.Errorf("unknown query op %q: %w\n%s", name, ErrUsage, queryUsage())
	}
	if len(rest)-1 != len(op.args) {
		return fmt.Errorf("%s takes %s: %w", name, strings.Join(op.args, " "), ErrUsage)
	}
	values := make([]int64, len(op.args))
	for i, s := range rest[1:] {
		v, err := parseInt(op.args[i], s)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		values[i] = v
	}

	snap, err := snapshot.Open(*snapDir)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()

	start := time.Now()
	if err := op.run(query.New(snap), values, stdout); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	log := logctx.FromContext(ctx)
	log.Debug().
		Str("op", name).
		Int("length", snap.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("query answered")
	return nil
}
