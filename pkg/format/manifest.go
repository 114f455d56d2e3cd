package format

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// Manifest describes the contents of a snapshot directory.
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	// Length is the number of sequence values.
	Length uint64 `json:"length"`
	// Total is prefix[Length].
	Total int64 `json:"total"`
	// DistinctSums is the number of distinct prefix-sum values.
	DistinctSums uint64              `json:"distinct_sums"`
	Files        map[string]FileInfo `json:"files"`
}

// FileInfo describes a single file in the snapshot.
type FileInfo struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"` // SHA-256 hex
}

// NewManifest stats and checksums the named files in dir.
func NewManifest(dir string, length uint64, total int64, distinct uint64, names []string) (*Manifest, error) {
	manifest := &Manifest{
		Version:      ManifestVersion,
		CreatedAt:    time.Now().UTC(),
		Length:       length,
		Total:        total,
		DistinctSums: distinct,
		Files:        make(map[string]FileInfo, len(names)),
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}

		checksum, err := checksumFile(path)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", name, err)
		}

		manifest.Files[name] = FileInfo{Size: info.Size(), Checksum: checksum}
	}
	return manifest, nil
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest from the snapshot directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest version %d: %w", manifest.Version, ErrVersionMismatch)
	}
	return &manifest, nil
}

// VerifyManifest checks that all files match their sizes and checksums.
func VerifyManifest(dir string, manifest *Manifest) error {
	for name, info := range manifest.Files {
		path := filepath.Join(dir, name)

		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("file %s: %w", name, err)
		}
		if stat.Size() != info.Size {
			return fmt.Errorf("file %s: size %d, want %d: %w", name, stat.Size(), info.Size, ErrManifestMismatch)
		}

		checksum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", name, err)
		}
		if checksum != info.Checksum {
			return fmt.Errorf("file %s: checksum: %w", name, ErrManifestMismatch)
		}
	}
	return nil
}

// checksumFile computes the SHA-256 checksum of a file.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SyncDir fsyncs a directory to ensure entries are persisted.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Sync()
}
