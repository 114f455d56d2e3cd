// Package ingest reads integer sequences from text, CSV and Parquet
// sources, optionally gzip or zstd compressed.
package ingest

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrColumnNotFound indicates a configured column missing from the input.
	ErrColumnNotFound = errors.New("value column not found")
	// ErrInvalidValue indicates a field that is not a base-10 int64.
	ErrInvalidValue = errors.New("invalid value")
)

// DefaultParquetColumn is the column read from Parquet files when Config
// names none.
const DefaultParquetColumn = "value"

// ValueReader yields sequence values in order.
type ValueReader interface {
	// Next returns the next value, or io.EOF when exhausted.
	Next() (int64, error)
	// Close releases resources associated with the reader.
	Close() error
}

// Config selects the value column.
type Config struct {
	// Column names the value column. Text input needs Header to resolve it.
	// Parquet input defaults to DefaultParquetColumn.
	Column string
	// ColumnIndex selects the text column when Column is empty.
	ColumnIndex int
	// Header marks the first text row as a header.
	Header bool
}

// Format is the decoded layout of an input.
type Format int

const (
	FormatText Format = iota
	FormatParquet
)

// Compression is the outer encoding of an input.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// DetectFormat infers compression and format from a file name or object
// key: "values.csv.gz" is gzip text, "part-0.parquet" is Parquet.
func DetectFormat(name string) (Format, Compression) {
	lower := strings.ToLower(name)
	comp := CompressionNone
	switch {
	case strings.HasSuffix(lower, ".gz"):
		comp = CompressionGzip
		lower = strings.TrimSuffix(lower, ".gz")
	case strings.HasSuffix(lower, ".zst"):
		comp = CompressionZstd
		lower = strings.TrimSuffix(lower, ".zst")
	}
	if filepath.Ext(lower) == ".parquet" {
		return FormatParquet, comp
	}
	return FormatText, comp
}

// Open opens a local file, picking the reader from its name.
func Open(path string, cfg Config) (ValueReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	format, comp := DetectFormat(path)
	if format == FormatParquet && comp == CompressionNone {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat input: %w", err)
		}
		r, err := newParquetReader(f, info.Size(), cfg)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.closers = append(r.closers, f)
		return r, nil
	}

	return NewStreamReader(f, path, cfg)
}

// NewStreamReader wraps a stream such as an S3 object body. name is the
// file name or object key used for format detection. The reader takes
// ownership of r.
func NewStreamReader(r io.ReadCloser, name string, cfg Config) (ValueReader, error) {
	format, comp := DetectFormat(name)

	var src io.Reader = r
	closers := []io.Closer{r}
	switch comp {
	case CompressionGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		closers = append(closers, gzr)
		src = gzr
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		rc := dec.IOReadCloser()
		closers = append(closers, rc)
		src = rc
	}

	if format == FormatParquet {
		pr, err := newParquetReaderFromStream(src, cfg)
		// The stream has been fully buffered or failed either way.
		closeAll(closers)
		if err != nil {
			return nil, err
		}
		return pr, nil
	}

	tr, err := newTextReader(src, cfg)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	tr.closers = closers
	return tr, nil
}

// closeAll closes in reverse order (decoders before the underlying stream)
// and returns the first error.
func closeAll(closers []io.Closer) error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// multiReader drains readers in order.
type multiReader struct {
	readers []ValueReader
}

// MultiReader returns a reader that yields the values of each reader in
// turn. Each reader is closed once exhausted.
func MultiReader(readers ...ValueReader) ValueReader {
	return &multiReader{readers: readers}
}

func (m *multiReader) Next() (int64, error) {
	for len(m.readers) > 0 {
		v, err := m.readers[0].Next()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, io.EOF) {
			return 0, err
		}
		if err := m.readers[0].Close(); err != nil {
			return 0, fmt.Errorf("close exhausted reader: %w", err)
		}
		m.readers = m.readers[1:]
	}
	return 0, io.EOF
}

func (m *multiReader) Close() error {
	var errs []error
	for _, r := range m.readers {
		errs = append(errs, r.Close())
	}
	m.readers = nil
	return errors.Join(errs...)
}
