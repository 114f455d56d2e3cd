// Package fileutil provides tmp+rename file writes and column file checks
// for snapshot directories.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eunmann/rangeagg/pkg/format"
	"github.com/eunmann/rangeagg/pkg/logging"
)

// TmpSuffix marks files that have not been moved into place yet.
const TmpSuffix = ".tmp"

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsNonEmpty returns true if the file exists and has non-zero size.
func IsNonEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// ColumnFileValid checks that a column file exists, carries a valid header
// with the expected count and width, and has exactly the matching size.
func ColumnFileValid(path string, expectedN uint64, expectedWidth uint32) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	headerBuf := make([]byte, format.HeaderSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		return false
	}
	h, err := format.DecodeHeader(headerBuf)
	if err != nil || h.Validate() != nil {
		return false
	}
	if h.Count != expectedN || h.Width != expectedWidth {
		return false
	}

	info, err := f.Stat()
	if err != nil {
		return false
	}
	expectedSize := int64(format.HeaderSize) + int64(expectedN)*int64(expectedWidth)
	return info.Size() == expectedSize
}

// WriteTmpThenMove writes to a temporary file then atomically moves it to
// the final path. writeFunc receives the temporary path and must write the
// complete file.
func WriteTmpThenMove(tmpDir, outPath string, writeFunc func(tmpPath string) error) error {
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("create tmp dir: %w", err)
	}

	tmpPath := filepath.Join(tmpDir, filepath.Base(outPath)+TmpSuffix)

	if err := writeFunc(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

// syncFile opens, syncs, and closes a file.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	err = f.Sync()
	f.Close()
	return err
}

// CleanupTmpFiles removes all .tmp files in the given directory recursively
// and returns how many were removed.
func CleanupTmpFiles(dir string) (int, error) {
	log := logging.L()

	var removed int
	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr
		}
		if !info.IsDir() && strings.HasSuffix(path, TmpSuffix) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})

	if removed > 0 {
		log.Debug().Int("files_removed", removed).Str("dir", dir).Msg("cleaned up tmp files")
	}
	return removed, err
}
