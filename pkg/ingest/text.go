package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// textReader reads one value per line, or one column of CSV rows.
type textReader struct {
	csvReader *csv.Reader
	col       int
	closers   []io.Closer
}

// NewTextReader reads values from plain-text or CSV data that is already
// decompressed.
func NewTextReader(r io.Reader, cfg Config) (ValueReader, error) {
	tr, err := newTextReader(r, cfg)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func newTextReader(r io.Reader, cfg Config) (*textReader, error) {
	csvr := csv.NewReader(r)
	csvr.ReuseRecord = true
	csvr.FieldsPerRecord = -1
	csvr.TrimLeadingSpace = true
	csvr.Comment = '#'

	tr := &textReader{csvReader: csvr, col: cfg.ColumnIndex}
	if tr.col < 0 {
		return nil, fmt.Errorf("column index %d: %w", tr.col, ErrColumnNotFound)
	}

	if cfg.Column != "" && !cfg.Header {
		return nil, fmt.Errorf("column %q without a header row: %w", cfg.Column, ErrColumnNotFound)
	}
	if !cfg.Header {
		return tr, nil
	}

	header, err := csvr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row: %w", ErrColumnNotFound)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if cfg.Column == "" {
		return tr, nil
	}
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), cfg.Column) {
			tr.col = i
			return tr, nil
		}
	}
	return nil, fmt.Errorf("column %q: %w", cfg.Column, ErrColumnNotFound)
}

// Next returns the next value. Blank lines are skipped.
func (r *textReader) Next() (int64, error) {
	fields, err := r.csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read row: %w", err)
	}

	line, _ := r.csvReader.FieldPos(0)
	if len(fields) <= r.col {
		return 0, fmt.Errorf("line %d: %d fields, want column %d: %w", line, len(fields), r.col, ErrColumnNotFound)
	}

	field := strings.TrimSpace(fields[r.col])
	v, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %q: %w", line, field, ErrInvalidValue)
	}
	return v, nil
}

// Close releases resources.
func (r *textReader) Close() error {
	closers := r.closers
	r.closers = nil
	return closeAll(closers)
}
