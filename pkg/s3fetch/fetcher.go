package s3fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/logging"
)

// ErrNoObjects indicates a fetch prefix that matched nothing.
var ErrNoObjects = errors.New("no objects under prefix")

// ObjectStore is the subset of Client used by Fetcher.
type ObjectStore interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)
	DownloadFile(ctx context.Context, bucket, key, destPath string) (*DownloadResult, error)
}

var _ ObjectStore = (*Client)(nil)

// FetchConfig configures a bulk download of value sources.
type FetchConfig struct {
	// URI is s3://bucket/prefix. Every object under the prefix is fetched.
	URI string
	// DownloadDir receives the downloaded files.
	DownloadDir string
	// Concurrency is the number of objects downloaded in parallel
	// (default: 4).
	Concurrency int
	// KeepFiles disables Cleanup.
	KeepFiles bool
	// OwnsDir lets Cleanup remove DownloadDir itself. Otherwise only the
	// files written by Fetch are removed.
	OwnsDir bool
	// Include, if set, selects which keys are fetched.
	Include func(key string) bool
}

// FetchResult describes a completed fetch.
type FetchResult struct {
	Bucket string
	Prefix string
	// LocalFiles holds one path per object, in key order.
	LocalFiles []string
	Bytes      int64
}

// Fetcher downloads every object under an S3 prefix.
type Fetcher struct {
	store ObjectStore
	cfg   FetchConfig

	mu      sync.Mutex
	written []string
}

// NewFetcher creates a new fetcher.
func NewFetcher(store ObjectStore, cfg FetchConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{store: store, cfg: cfg}
}

// Fetch lists the prefix and downloads the matching objects.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	ctx = logctx.WithOp(ctx, "s3_fetch")
	log := logctx.FromContext(ctx)

	bucket, prefix, err := ParseS3URI(f.cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parse fetch URI: %w", err)
	}

	objects, err := f.store.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	if f.cfg.Include != nil {
		objects = slices.DeleteFunc(objects, func(o Object) bool { return !f.cfg.Include(o.Key) })
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%s: %w", f.cfg.URI, ErrNoObjects)
	}
	slices.SortFunc(objects, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })

	if err := os.MkdirAll(f.cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	log.Info().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("objects", len(objects)).
		Int("concurrency", f.cfg.Concurrency).
		Msg("fetching objects")

	localFiles := make([]string, len(objects))
	var total atomic.Int64
	pt := logging.NewProgressTracker("s3_fetch", int64(len(objects)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	for i, obj := range objects {
		g.Go(func() error {
			localPath := filepath.Join(f.cfg.DownloadDir, localName(i, obj.Key))
			f.track(localPath)
			res, err := f.store.DownloadFile(gctx, bucket, obj.Key, localPath)
			if err != nil {
				return fmt.Errorf("download %s: %w", obj.Key, err)
			}
			localFiles[i] = localPath
			total.Add(res.BytesDownloaded)
			pt.RecordCompletion(res.Duration)

			logging.ObjectDownloaded(log, "s3_fetch", res.Duration).
				Str("key", obj.Key).
				Bytes("bytes", res.BytesDownloaded).
				Progress(pt).
				LogDebug("object downloaded")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.PhaseComplete(log, "s3_fetch", pt.Elapsed()).
		Int("objects", len(objects)).
		Bytes("bytes", total.Load()).
		Log("fetch complete")

	return &FetchResult{
		Bucket:     bucket,
		Prefix:     prefix,
		LocalFiles: localFiles,
		Bytes:      total.Load(),
	}, nil
}

func (f *Fetcher) track(path string) {
	f.mu.Lock()
	f.written = append(f.written, path)
	f.mu.Unlock()
}

// Cleanup removes what Fetch downloaded unless KeepFiles is set: the whole
// download directory when OwnsDir is set, the fetched files otherwise.
func (f *Fetcher) Cleanup() error {
	if f.cfg.KeepFiles {
		return nil
	}
	if f.cfg.OwnsDir {
		return os.RemoveAll(f.cfg.DownloadDir)
	}

	f.mu.Lock()
	written := f.written
	f.written = nil
	f.mu.Unlock()

	var errs []error
	for _, p := range written {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// localName is the download file name for the i-th key. The index keeps
// keys with equal base names apart and the base name keeps the extension
// used for format detection.
func localName(i int, key string) string {
	return fmt.Sprintf("%05d-%s", i, sanitizeFilename(key))
}

// sanitizeFilename converts an S3 key to a safe local filename.
func sanitizeFilename(key string) string {
	return filepath.Base(key)
}
