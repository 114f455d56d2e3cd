// Package format defines the columnar file formats of a persisted snapshot.
package format

import "encoding/binary"

const (
	// MagicNumber identifies rangeagg column files.
	MagicNumber uint32 = 0x52414747 // "RAGG"
	// Version is the current format version.
	Version uint32 = 1
)

// Element widths in bytes.
const (
	WidthI64 uint32 = 8
	WidthU64 uint32 = 8
)

// File names inside a snapshot directory.
const (
	ValuesFile       = "values.i64"
	PrefixFile       = "prefix.i64"
	FirstOccMPHFile  = "firstocc.mph"
	FirstOccKeysFile = "firstocc_key.i64"
	FirstOccPosFile  = "firstocc_pos.u64"
	ManifestFile     = "manifest.json"
)

// Header is the common header for all columnar files.
type Header struct {
	Magic   uint32
	Version uint32
	Count   uint64 // Number of elements
	Width   uint32 // Element width in bytes
}

// HeaderSize is the size of the header in bytes.
const HeaderSize = 4 + 4 + 8 + 4 // 20 bytes

// EncodeHeader writes a header to a byte slice.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.Count)
	binary.LittleEndian.PutUint32(buf[16:20], h.Width)
	return buf
}

// DecodeHeader reads a header from a byte slice.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrInvalidHeader
	}
	return Header{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Version: binary.LittleEndian.Uint32(buf[4:8]),
		Count:   binary.LittleEndian.Uint64(buf[8:16]),
		Width:   binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// Validate checks magic and version.
func (h Header) Validate() error {
	if h.Magic != MagicNumber {
		return ErrMagicMismatch
	}
	if h.Version != Version {
		return ErrVersionMismatch
	}
	return nil
}
