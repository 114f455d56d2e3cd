// Package snapshot persists a sequence and its prefix sums as memory-mapped
// column files, with a first-occurrence table over the prefix sums.
//
// A snapshot directory holds:
//
//	values.i64        sequence values
//	prefix.i64        prefix sums, one longer than values
//	firstocc.mph      perfect hash over the distinct prefix sums
//	firstocc_key.i64  prefix sum per hash slot, for verification
//	firstocc_pos.u64  first position per hash slot
//	manifest.json     sizes and SHA-256 checksums of the above
//
// Every file is written to a .tmp sibling and renamed into place. The
// manifest is written last, so a directory without one is incomplete.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/fileutil"
	"github.com/eunmann/rangeagg/pkg/format"
	"github.com/eunmann/rangeagg/pkg/logging"
	"github.com/eunmann/rangeagg/pkg/query"
)

// ErrCorrupt indicates column files that disagree with each other or with
// the manifest.
var ErrCorrupt = errors.New("corrupt snapshot")

var columnFiles = []string{
	format.ValuesFile,
	format.PrefixFile,
	format.FirstOccMPHFile,
	format.FirstOccKeysFile,
	format.FirstOccPosFile,
}

// Write persists src into dir and returns the manifest it wrote.
func Write(ctx context.Context, dir string, src query.Source) (*format.Manifest, error) {
	log := logctx.FromContext(logctx.WithOp(ctx, "snapshot_write"))
	start := time.Now()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if _, err := fileutil.CleanupTmpFiles(dir); err != nil {
		return nil, fmt.Errorf("cleanup tmp files: %w", err)
	}
	// A stale manifest would describe files about to be replaced.
	if err := os.Remove(filepath.Join(dir, format.ManifestFile)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove old manifest: %w", err)
	}

	n := src.Len()
	var distinct int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeColumn(gctx, dir, format.ValuesFile, n, src.Value)
	})
	g.Go(func() error {
		return writeColumn(gctx, dir, format.PrefixFile, n+1, src.Prefix)
	})
	g.Go(func() error {
		count, err := writeFirstOccurrences(gctx, dir, src)
		distinct = count
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest, err := format.NewManifest(dir, uint64(n), src.Prefix(n), uint64(distinct), columnFiles)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(dir, format.ManifestFile)
	if err := fileutil.WriteTmpThenMove(dir, manifestPath, func(tmpPath string) error {
		return format.WriteManifest(tmpPath, manifest)
	}); err != nil {
		return nil, err
	}
	if err := format.SyncDir(dir); err != nil {
		return nil, fmt.Errorf("sync snapshot dir: %w", err)
	}

	var size int64
	for _, f := range manifest.Files {
		size += f.Size
	}
	logging.SnapshotWritten(log, "snapshot", time.Since(start)).
		Str("dir", dir).
		Count("length", int64(n)).
		Count("distinct_sums", int64(distinct)).
		Bytes("size", size).
		Log("snapshot written")
	return manifest, nil
}

func writeColumn(ctx context.Context, dir, name string, n int, at func(int) int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := fileutil.WriteTmpThenMove(dir, filepath.Join(dir, name), func(tmpPath string) error {
		return format.WriteI64Column(tmpPath, n, at)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func writeFirstOccurrences(ctx context.Context, dir string, src query.Source) (int, error) {
	n := src.Len()
	b := format.NewFirstOccurrenceBuilder(n + 1)
	for i := 0; i <= n; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		b.Add(src.Prefix(i), uint64(i))
	}

	layout, err := b.Build()
	if err != nil {
		return 0, fmt.Errorf("build first-occurrence table: %w", err)
	}

	writes := []struct {
		name  string
		write func(string) error
	}{
		{format.FirstOccMPHFile, layout.WriteMPH},
		{format.FirstOccKeysFile, layout.WriteKeys},
		{format.FirstOccPosFile, layout.WritePositions},
	}
	for _, w := range writes {
		if err := fileutil.WriteTmpThenMove(dir, filepath.Join(dir, w.name), w.write); err != nil {
			return 0, fmt.Errorf("write %s: %w", w.name, err)
		}
	}
	return b.Count(), nil
}

// Snapshot is a persisted, read-only sequence. It implements query.Source
// and query.FirstOccurrences.
//
// Thread Safety: all read methods may be called concurrently. Close must
// be called once, after all reads.
type Snapshot struct {
	dir      string
	manifest *format.Manifest
	values   *format.ArrayReader
	prefix   *format.ArrayReader
	firstOcc *format.FirstOccurrenceTable
	length   int
}

// Open maps the snapshot in dir. It checks that the column counts agree
// with the manifest; use Verify for a full checksum pass.
func Open(dir string) (*Snapshot, error) {
	manifest, err := format.ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{dir: dir, manifest: manifest, length: int(manifest.Length)}
	if s.values, err = format.OpenArray(filepath.Join(dir, format.ValuesFile)); err != nil {
		s.Close()
		return nil, fmt.Errorf("open values: %w", err)
	}
	if s.prefix, err = format.OpenArray(filepath.Join(dir, format.PrefixFile)); err != nil {
		s.Close()
		return nil, fmt.Errorf("open prefix: %w", err)
	}
	s.firstOcc, err = format.OpenFirstOccurrenceTable(
		filepath.Join(dir, format.FirstOccMPHFile),
		filepath.Join(dir, format.FirstOccKeysFile),
		filepath.Join(dir, format.FirstOccPosFile),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open first-occurrence table: %w", err)
	}

	switch {
	case s.values.Count() != manifest.Length:
		err = fmt.Errorf("values count %d, manifest length %d: %w", s.values.Count(), manifest.Length, ErrCorrupt)
	case s.prefix.Count() != manifest.Length+1:
		err = fmt.Errorf("prefix count %d, manifest length %d: %w", s.prefix.Count(), manifest.Length, ErrCorrupt)
	case s.values.Width() != format.WidthI64 || s.prefix.Width() != format.WidthI64:
		err = fmt.Errorf("column width: %w", ErrCorrupt)
	case s.firstOcc.Count() != manifest.DistinctSums:
		err = fmt.Errorf("first-occurrence count %d, manifest %d: %w", s.firstOcc.Count(), manifest.DistinctSums, ErrCorrupt)
	case s.prefix.UnsafeGetI64(0) != 0:
		err = fmt.Errorf("prefix[0] is not zero: %w", ErrCorrupt)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Verify checks every file against the manifest checksums.
func (s *Snapshot) Verify() error {
	return format.VerifyManifest(s.dir, s.manifest)
}

// Manifest returns the manifest the snapshot was opened with.
func (s *Snapshot) Manifest() *format.Manifest {
	return s.manifest
}

// Len implements query.Source.
func (s *Snapshot) Len() int { return s.length }

// Value implements query.Source.
func (s *Snapshot) Value(i int) int64 { return s.values.UnsafeGetI64(uint64(i)) }

// Prefix implements query.Source.
func (s *Snapshot) Prefix(i int) int64 { return s.prefix.UnsafeGetI64(uint64(i)) }

// FirstOccurrence implements query.FirstOccurrences.
func (s *Snapshot) FirstOccurrence(sum int64) (int, bool) {
	pos, ok := s.firstOcc.Lookup(sum)
	return int(pos), ok
}

// Close releases all mappings.
func (s *Snapshot) Close() error {
	var errs []error
	if s.values != nil {
		errs = append(errs, s.values.Close())
	}
	if s.prefix != nil {
		errs = append(errs, s.prefix.Close())
	}
	if s.firstOcc != nil {
		errs = append(errs, s.firstOcc.Close())
	}
	return errors.Join(errs...)
}

var (
	_ query.Source           = (*Snapshot)(nil)
	_ query.FirstOccurrences = (*Snapshot)(nil)
)
