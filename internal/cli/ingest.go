package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/engine"
	"github.com/eunmann/rangeagg/pkg/humanfmt"
	"github.com/eunmann/rangeagg/pkg/ingest"
	"github.com/eunmann/rangeagg/pkg/logging"
	"github.com/eunmann/rangeagg/pkg/membudget"
	"github.com/eunmann/rangeagg/pkg/memdiag"
	"github.com/eunmann/rangeagg/pkg/s3fetch"
	"github.com/eunmann/rangeagg/pkg/snapshot"
)

type ingestOptions struct {
	out           string
	reader        ingest.Config
	maxLength     int
	budget        *membudget.Budget
	concurrency   int
	downloadDir   string
	keepDownloads bool
}

// source is one resolved input, opened when its turn comes.
type source struct {
	name string
	open func(ctx context.Context) (ingest.ValueReader, error)
}

func runIngest(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	out := fs.String("out", "", "output snapshot directory")
	column := fs.String("column", "", "value column name (text input needs --header)")
	columnIndex := fs.Int("column-index", 0, "zero-based text column when --column is not set")
	header := fs.Bool("header", false, "first text row is a header")
	maxLength := fs.String("max-length", "", "maximum number of values (default $"+EnvMaxLength+", else unbounded)")
	memBudget := fs.String("mem-budget", "", "memory budget for values, e.g. 2GiB (default $"+EnvMemBudget+", else half of RAM)")
	concurrency := fs.Int("concurrency", 4, "parallel S3 object downloads")
	downloadDir := fs.String("download-dir", "", "directory for S3 prefix downloads (default: a temp dir)")
	keepDownloads := fs.Bool("keep-downloads", false, "keep downloaded S3 objects")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag("out", *out); err != nil {
		return err
	}
	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("at least one input file or s3:// URI is required: %w", ErrUsage)
	}
	maxLen, err := determineMaxLength(*maxLength)
	if err != nil {
		return err
	}
	budget, err := determineMemoryBudget(*memBudget)
	if err != nil {
		return err
	}

	return ingestInputs(ctx, inputs, ingestOptions{
		out:           *out,
		reader:        ingest.Config{Column: *column, ColumnIndex: *columnIndex, Header: *header},
		maxLength:     maxLen,
		budget:        budget,
		concurrency:   *concurrency,
		downloadDir:   *downloadDir,
		keepDownloads: *keepDownloads,
	}, stdout)
}

func ingestInputs(ctx context.Context, inputs []string, opts ingestOptions, stdout io.Writer) error {
	ctx = logctx.WithOp(ctx, "ingest")
	log := logctx.FromContext(ctx)
	start := time.Now()

	tracker := memdiag.NewTracker(memdiag.DefaultConfig(), opts.budget)
	tracker.Start()
	defer tracker.Stop()

	tracker.SetPhase("resolve")
	sources, cleanup, err := resolveSources(ctx, inputs, opts)
	defer cleanup()
	if err != nil {
		return err
	}

	if opts.budget != nil {
		log.Info().
			Str("budget", humanfmt.Bytes(int64(opts.budget.Total()))).
			Str("budget_source", string(opts.budget.Source())).
			Int("sources", len(sources)).
			Msg("ingest starting")
	}

	tracker.SetPhase("ingest")
	eng := engine.New(engine.Options{MaxLength: opts.maxLength, Budget: opts.budget})
	pt := logging.NewProgressTracker("ingest", int64(len(sources)))
	for _, src := range sources {
		if err := ingestSource(ctx, eng, src, pt); err != nil {
			return err
		}
	}

	logging.PhaseComplete(log, "ingest", time.Since(start)).
		Int("sources", len(sources)).
		Count("values", int64(eng.Len())).
		Rate(int64(eng.Len())).
		Log("ingest complete")

	tracker.SetPhase("snapshot_write")
	manifest, err := snapshot.Write(ctx, opts.out, eng.Snapshot())
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	fmt.Fprintf(stdout, "snapshot %s: %d values, total %d, %d distinct prefix sums\n",
		opts.out, manifest.Length, manifest.Total, manifest.DistinctSums)
	return nil
}

func ingestSource(ctx context.Context, eng *engine.Engine, src source, pt *logging.ProgressTracker) error {
	ctx = logctx.WithStr(ctx, "source", src.name)
	start := time.Now()

	r, err := src.open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", src.name, err)
	}
	n, err := eng.Ingest(ctx, r)
	if closeErr := r.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("ingest %s: %w", src.name, err)
	}

	elapsed := time.Since(start)
	pt.RecordCompletion(elapsed)
	logging.SourceIngested(logctx.FromContext(ctx), "ingest", elapsed).
		Count("values", int64(n)).
		Rate(int64(n)).
		Int("length", eng.Len()).
		Progress(pt).
		Log("source ingested")
	return nil
}

// resolveSources expands inputs in order. An s3:// URI whose key is empty
// or ends in "/" is a prefix: its objects are downloaded up front. Any
// other s3:// URI is streamed. cleanup is always safe to call.
func resolveSources(ctx context.Context, inputs []string, opts ingestOptions) ([]source, func(), error) {
	var (
		sources  []source
		client   *s3fetch.Client
		cleanups []func()
	)
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	for _, input := range inputs {
		if !s3fetch.IsS3URI(input) {
			sources = append(sources, localSource(input, opts.reader))
			continue
		}

		bucket, key, err := s3fetch.ParseS3URI(input)
		if err != nil {
			return nil, cleanup, err
		}
		if client == nil {
			if client, err = s3fetch.NewClient(ctx, s3fetch.DefaultDownloaderConfig()); err != nil {
				return nil, cleanup, err
			}
		}

		if key != "" && !strings.HasSuffix(key, "/") {
			sources = append(sources, objectSource(client, bucket, key, opts.reader))
			continue
		}

		fetched, done, err := fetchPrefix(ctx, client, input, opts)
		cleanups = append(cleanups, done)
		if err != nil {
			return nil, cleanup, err
		}
		for _, p := range fetched {
			sources = append(sources, localSource(p, opts.reader))
		}
	}
	return sources, cleanup, nil
}

func localSource(p string, cfg ingest.Config) source {
	return source{
		name: p,
		open: func(context.Context) (ingest.ValueReader, error) {
			return ingest.Open(p, cfg)
		},
	}
}

func objectSource(client *s3fetch.Client, bucket, key string, cfg ingest.Config) source {
	return source{
		name: s3fetch.FormatURI(bucket, key),
		open: func(ctx context.Context) (ingest.ValueReader, error) {
			body, err := client.StreamObject(ctx, bucket, key)
			if err != nil {
				return nil, err
			}
			return ingest.NewStreamReader(body, key, cfg)
		},
	}
}

func fetchPrefix(ctx context.Context, store s3fetch.ObjectStore, uri string, opts ingestOptions) ([]string, func(), error) {
	dir := opts.downloadDir
	ownsDir := dir == ""
	if ownsDir {
		tmp, err := os.MkdirTemp("", "rangeagg-fetch-*")
		if err != nil {
			return nil, func() {}, fmt.Errorf("create download dir: %w", err)
		}
		dir = tmp
	}

	f := s3fetch.NewFetcher(store, s3fetch.FetchConfig{
		URI:         uri,
		DownloadDir: dir,
		Concurrency: opts.concurrency,
		KeepFiles:   opts.keepDownloads,
		OwnsDir:     ownsDir,
		Include:     isDataKey,
	})
	done := func() {
		if err := f.Cleanup(); err != nil {
			log := logctx.FromContext(ctx)
			log.Warn().Err(err).Str("dir", dir).Msg("remove downloads")
		}
	}

	res, err := f.Fetch(ctx)
	if err != nil {
		return nil, done, err
	}
	return res.LocalFiles, done, nil
}

// isDataKey skips marker and hidden objects such as _SUCCESS.
func isDataKey(key string) bool {
	base := path.Base(key)
	return !strings.HasPrefix(base, "_") && !strings.HasPrefix(base, ".")
}
