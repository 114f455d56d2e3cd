package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// parquetReader streams one INT32 or INT64 column through the row groups
// of a Parquet file. Null values are skipped.
type parquetReader struct {
	file    *parquet.File
	col     int
	closers []io.Closer

	rowGroups    []parquet.RowGroup
	currentRGIdx int
	currentRows  parquet.Rows
	rowBuf       []parquet.Row
	bufIdx       int
	bufLen       int
}

// rowBatch is how many rows are decoded per ReadRows call.
const rowBatch = 1024

// NewParquetReader reads from random-access Parquet data. Closing the
// returned reader does not close r.
func NewParquetReader(r io.ReaderAt, size int64, cfg Config) (ValueReader, error) {
	pr, err := newParquetReader(r, size, cfg)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func newParquetReader(r io.ReaderAt, size int64, cfg Config) (*parquetReader, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	name := cfg.Column
	if name == "" {
		name = DefaultParquetColumn
	}
	col := -1
	for i, field := range file.Schema().Fields() {
		if field.Name() == name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("parquet column %q: %w", name, ErrColumnNotFound)
	}

	return &parquetReader{
		file:         file,
		col:          col,
		rowGroups:    file.RowGroups(),
		currentRGIdx: -1,
		rowBuf:       make([]parquet.Row, rowBatch),
	}, nil
}

// newParquetReaderFromStream buffers a stream to a temp file, since
// Parquet needs random access to its footer.
func newParquetReaderFromStream(r io.Reader, cfg Config) (*parquetReader, error) {
	tempFile, err := os.CreateTemp("", "rangeagg-*.parquet")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}

	written, err := io.Copy(tempFile, r)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("buffer parquet data: %w", err)
	}

	pr, err := newParquetReader(tempFile, written, cfg)
	if err != nil {
		cleanup()
		return nil, err
	}
	pr.closers = append(pr.closers, tempCloser{tempFile})
	return pr, nil
}

// tempCloser closes and removes a temp file.
type tempCloser struct {
	f *os.File
}

func (c tempCloser) Close() error {
	err := c.f.Close()
	if rmErr := os.Remove(c.f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Next returns the next non-null value.
func (r *parquetReader) Next() (int64, error) {
	for {
		if r.bufIdx < r.bufLen {
			row := r.rowBuf[r.bufIdx]
			r.bufIdx++
			v, ok, err := r.value(row)
			if err != nil {
				return 0, err
			}
			if ok {
				return v, nil
			}
			continue
		}

		if r.currentRows != nil {
			n, err := r.currentRows.ReadRows(r.rowBuf)
			if n > 0 {
				r.bufIdx = 0
				r.bufLen = n
				continue
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("read parquet rows: %w", err)
			}
			r.currentRows.Close()
			r.currentRows = nil
		}

		r.currentRGIdx++
		if r.currentRGIdx >= len(r.rowGroups) {
			return 0, io.EOF
		}
		r.currentRows = r.rowGroups[r.currentRGIdx].Rows()
	}
}

func (r *parquetReader) value(row parquet.Row) (int64, bool, error) {
	for _, val := range row {
		if val.Column() != r.col {
			continue
		}
		if val.IsNull() {
			return 0, false, nil
		}
		switch val.Kind() {
		case parquet.Int64:
			return val.Int64(), true, nil
		case parquet.Int32:
			return int64(val.Int32()), true, nil
		default:
			return 0, false, fmt.Errorf("parquet column kind %s: %w", val.Kind(), ErrInvalidValue)
		}
	}
	return 0, false, nil
}

// Close releases resources.
func (r *parquetReader) Close() error {
	if r.currentRows != nil {
		r.currentRows.Close()
		r.currentRows = nil
	}
	closers := r.closers
	r.closers = nil
	return closeAll(closers)
}
