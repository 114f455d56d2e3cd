// Package cli implements the command-line interface for rangeagg.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/logging"
	"github.com/eunmann/rangeagg/pkg/membudget"
)

const (
	// EnvMaxLength supplies --max-length when the flag is not given.
	EnvMaxLength = "RANGEAGG_MAX_LENGTH"
	// EnvMemBudget supplies --mem-budget when the flag is not given.
	EnvMemBudget = "RANGEAGG_MEM_BUDGET"
)

// ErrUsage indicates a malformed command line.
var ErrUsage = errors.New("usage error")

const usage = `usage: rangeagg [--debug] [--human] <command> [options]
commands:
  ingest   --out DIR [--column NAME] [--header] [--max-length N] [--mem-budget SIZE] INPUT...
  query    --snapshot DIR <op> [args]
  inspect  --snapshot DIR [--verify=false]`

// Run executes the CLI with the given arguments. Results go to stdout;
// logs go to stderr.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rangeagg", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable console logs instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w\n%s", ErrUsage, usage)
	}

	logging.Init(*debug, *human)
	ctx = logctx.WithLogger(ctx, *logging.L())

	switch rest[0] {
	case "ingest":
		return runIngest(ctx, rest[1:], stdout)
	case "query":
		return runQuery(ctx, rest[1:], stdout)
	case "inspect":
		return runInspect(ctx, rest[1:], stdout)
	default:
		return fmt.Errorf("unknown command: %s: %w", rest[0], ErrUsage)
	}
}

// determineMaxLength resolves the sequence length limit: the flag takes
// priority, then EnvMaxLength, then unbounded (0).
func determineMaxLength(cli string) (int, error) {
	if cli != "" {
		n, err := parseMaxLength(cli)
		if err != nil {
			return 0, fmt.Errorf("--max-length: %w", err)
		}
		return n, nil
	}
	if env := os.Getenv(EnvMaxLength); env != "" {
		n, err := parseMaxLength(env)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", EnvMaxLength, err)
		}
		return n, nil
	}
	return 0, nil
}

// determineMemoryBudget resolves the memory budget: the flag takes
// priority, then EnvMemBudget, then half of system RAM.
func determineMemoryBudget(cli string) (*membudget.Budget, error) {
	if cli != "" {
		n, err := membudget.ParseSize(cli)
		if err != nil {
			return nil, fmt.Errorf("--mem-budget: %w", err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceCLI}), nil
	}
	if env := os.Getenv(EnvMemBudget); env != "" {
		n, err := membudget.ParseSize(env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMemBudget, err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceEnv}), nil
	}
	return membudget.NewFromSystemRAM(), nil
}

func parseMaxLength(s string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, "_", ""))
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, ErrUsage)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length %d: %w", n, ErrUsage)
	}
	return n, nil
}

func parseInt(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer: %w", name, s, ErrUsage)
	}
	return v, nil
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required: %w", name, ErrUsage)
	}
	return nil
}
