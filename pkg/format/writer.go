package format

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// ArrayWriter writes a columnar array with a header.
type ArrayWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  uint64
	width  uint32
}

// NewArrayWriter creates a writer for a columnar array file.
func NewArrayWriter(path string, width uint32) (*ArrayWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create array file: %w", err)
	}

	w := bufio.NewWriter(f)

	// Placeholder header, rewritten with the real count on Close.
	header := EncodeHeader(Header{
		Magic:   MagicNumber,
		Version: Version,
		Width:   width,
	})
	if _, err := w.Write(header); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &ArrayWriter{file: f, writer: w, width: width}, nil
}

// WriteU64 writes a uint64 value.
func (w *ArrayWriter) WriteU64(val uint64) error {
	if w.width != WidthU64 {
		return fmt.Errorf("write u64 into width %d: %w", w.width, ErrWidthMismatch)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	if _, err := w.writer.Write(buf[:]); err != nil {
		return fmt.Errorf("write u64: %w", err)
	}
	w.count++
	return nil
}

// WriteI64 writes an int64 value as its two's complement bits.
func (w *ArrayWriter) WriteI64(val int64) error {
	if w.width != WidthI64 {
		return fmt.Errorf("write i64 into width %d: %w", w.width, ErrWidthMismatch)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(val))
	if _, err := w.writer.Write(buf[:]); err != nil {
		return fmt.Errorf("write i64: %w", err)
	}
	w.count++
	return nil
}

// Close flushes, updates the header with the correct count, and closes.
func (w *ArrayWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush: %w", err)
	}

	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("seek: %w", err)
	}

	header := EncodeHeader(Header{
		Magic:   MagicNumber,
		Version: Version,
		Count:   w.count,
		Width:   w.width,
	})
	if _, err := w.file.Write(header); err != nil {
		w.file.Close()
		return fmt.Errorf("update header: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// Count returns the number of elements written.
func (w *ArrayWriter) Count() uint64 {
	return w.count
}

// WriteI64Column writes n values produced by at to path.
func WriteI64Column(path string, n int, at func(i int) int64) error {
	w, err := NewArrayWriter(path, WidthI64)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.WriteI64(at(i)); err != nil {
			w.Close()
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return w.Close()
}

// WriteU64Column writes vals to path.
func WriteU64Column(path string, vals []uint64) error {
	w, err := NewArrayWriter(path, WidthU64)
	if err != nil {
		return err
	}
	for i, v := range vals {
		if err := w.WriteU64(v); err != nil {
			w.Close()
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return w.Close()
}
