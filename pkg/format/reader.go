package format

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapFile represents a memory-mapped file.
type MmapFile struct {
	data []byte
	size int64
}

// OpenMmap opens a file and maps it into memory read-only.
func OpenMmap(path string) (*MmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return &MmapFile{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &MmapFile{data: data, size: size}, nil
}

// Close unmaps the file. It is safe to call more than once.
func (m *MmapFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Data returns the raw memory-mapped bytes.
func (m *MmapFile) Data() []byte {
	return m.data
}

// Size returns the file size.
func (m *MmapFile) Size() int64 {
	return m.size
}

// ArrayReader provides read access to a columnar array via mmap.
//
// Thread Safety: ArrayReader is safe for concurrent read access from multiple
// goroutines. Close should only be called once, after all reads have
// completed.
type ArrayReader struct {
	mmap   *MmapFile
	header Header
	data   []byte
}

// OpenArray opens a columnar array file.
func OpenArray(path string) (*ArrayReader, error) {
	mmap, err := OpenMmap(path)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	if mmap.Size() < int64(HeaderSize) {
		mmap.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidHeader)
	}

	header, err := DecodeHeader(mmap.Data()[:HeaderSize])
	if err != nil {
		mmap.Close()
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if err := header.Validate(); err != nil {
		mmap.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	expectedSize := int64(HeaderSize) + int64(header.Count)*int64(header.Width)
	if mmap.Size() < expectedSize {
		mmap.Close()
		return nil, fmt.Errorf("%s: file too small: %d < %d: %w", path, mmap.Size(), expectedSize, ErrInvalidHeader)
	}

	return &ArrayReader{
		mmap:   mmap,
		header: header,
		data:   mmap.Data()[HeaderSize:],
	}, nil
}

// Close releases the memory mapping.
func (r *ArrayReader) Close() error {
	return r.mmap.Close()
}

// Count returns the number of elements.
func (r *ArrayReader) Count() uint64 {
	return r.header.Count
}

// Width returns the element width in bytes.
func (r *ArrayReader) Width() uint32 {
	return r.header.Width
}

// GetU64 returns the uint64 value at the given index.
func (r *ArrayReader) GetU64(idx uint64) (uint64, error) {
	if idx >= r.header.Count {
		return 0, ErrBoundsCheck
	}
	if r.header.Width != WidthU64 {
		return 0, fmt.Errorf("read u64 from width %d: %w", r.header.Width, ErrWidthMismatch)
	}
	return binary.LittleEndian.Uint64(r.data[idx*8:]), nil
}

// GetI64 returns the int64 value at the given index.
func (r *ArrayReader) GetI64(idx uint64) (int64, error) {
	if idx >= r.header.Count {
		return 0, ErrBoundsCheck
	}
	if r.header.Width != WidthI64 {
		return 0, fmt.Errorf("read i64 from width %d: %w", r.header.Width, ErrWidthMismatch)
	}
	return int64(binary.LittleEndian.Uint64(r.data[idx*8:])), nil
}

// UnsafeGetU64 returns the value without bounds checking.
//
// WARNING: Passing an idx >= Count() panics or reads garbage. Only use this
// in hot paths where the caller has already validated the index.
func (r *ArrayReader) UnsafeGetU64(idx uint64) uint64 {
	return binary.LittleEndian.Uint64(r.data[idx*8:])
}

// UnsafeGetI64 returns the value without bounds checking.
//
// WARNING: Passing an idx >= Count() panics or reads garbage. Only use this
// in hot paths where the caller has already validated the index.
func (r *ArrayReader) UnsafeGetI64(idx uint64) int64 {
	return int64(binary.LittleEndian.Uint64(r.data[idx*8:]))
}
