package s3fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/rangeagg/pkg/fileutil"
)

// DownloaderConfig configures ranged multi-part downloads.
type DownloaderConfig struct {
	// Concurrency is the number of parts fetched in parallel per object.
	// Default: NumCPU clamped to [4, 16].
	Concurrency int

	// PartSize is the size of each ranged GET in bytes. Default: 16 MiB.
	PartSize int64

	// TempDir holds DownloadToReader temp files. Empty means os.TempDir().
	TempDir string
}

// DefaultDownloaderConfig returns defaults sized to the current machine.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Concurrency: min(max(runtime.NumCPU(), 4), 16),
		PartSize:    16 * 1024 * 1024,
	}
}

func (c DownloaderConfig) withDefaults() DownloaderConfig {
	def := DefaultDownloaderConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.PartSize <= 0 {
		c.PartSize = def.PartSize
	}
	return c
}

// Downloader wraps the S3 transfer manager.
type Downloader struct {
	manager *manager.Downloader
	config  DownloaderConfig
}

// NewDownloader creates a Downloader from an existing S3 client.
func NewDownloader(s3Client *s3.Client, cfg DownloaderConfig) *Downloader {
	cfg = cfg.withDefaults()
	mgr := manager.NewDownloader(s3Client, func(d *manager.Downloader) {
		d.Concurrency = cfg.Concurrency
		d.PartSize = cfg.PartSize
		d.BufferProvider = manager.NewPooledBufferedWriterReadFromProvider(int(cfg.PartSize))
	})
	return &Downloader{manager: mgr, config: cfg}
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	Key             string
	BytesDownloaded int64
	Duration        time.Duration
	Concurrency     int
	PartSize        int64
}

func (d *Downloader) result(key string, n int64, start time.Time) *DownloadResult {
	return &DownloadResult{
		Key:             key,
		BytesDownloaded: n,
		Duration:        time.Since(start),
		Concurrency:     d.config.Concurrency,
		PartSize:        d.config.PartSize,
	}
}

func (d *Downloader) download(ctx context.Context, w io.WriterAt, bucket, key string) (int64, error) {
	n, err := d.manager.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", FormatURI(bucket, key), err)
	}
	return n, nil
}

// DownloadToReader downloads an object into a temp file and returns a
// reader over it. The temp file is removed when the reader is closed. The
// reader also implements io.ReaderAt and Size for columnar decoders.
func (d *Downloader) DownloadToReader(ctx context.Context, bucket, key string) (io.ReadCloser, *DownloadResult, error) {
	start := time.Now()

	tempDir := d.config.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	tempFile, err := os.CreateTemp(tempDir, "rangeagg-s3-*"+fileutil.TmpSuffix)
	if err != nil {
		return nil, nil, fmt.Errorf("create temp file: %w", err)
	}
	reader := &tempFileReader{file: tempFile, path: tempFile.Name()}

	n, err := d.download(ctx, tempFile, bucket, key)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		reader.Close()
		return nil, nil, fmt.Errorf("seek temp file: %w", err)
	}
	return reader, d.result(key, n, start), nil
}

// DownloadToFile downloads an object to destPath. The object is written
// beside destPath first and renamed into place once complete.
func (d *Downloader) DownloadToFile(ctx context.Context, bucket, key, destPath string) (*DownloadResult, error) {
	start := time.Now()

	var n int64
	err := fileutil.WriteTmpThenMove(filepath.Dir(destPath), destPath, func(tmpPath string) error {
		file, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create destination file: %w", err)
		}
		n, err = d.download(ctx, file, bucket, key)
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close destination file: %w", closeErr)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return d.result(key, n, start), nil
}

// Config returns the effective downloader configuration.
func (d *Downloader) Config() DownloaderConfig {
	return d.config
}

// tempFileReader wraps an os.File and deletes it on close.
type tempFileReader struct {
	file   *os.File
	path   string
	closed bool
}

func (r *tempFileReader) Read(p []byte) (int, error) {
	n, err := r.file.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read temp file: %w", err)
	}
	return n, err
}

// ReadAt implements io.ReaderAt.
func (r *tempFileReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.file.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read temp file at offset %d: %w", off, err)
	}
	return n, err
}

// Size returns the file size.
func (r *tempFileReader) Size() (int64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat temp file: %w", err)
	}
	return info.Size(), nil
}

func (r *tempFileReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.file.Close()
	os.Remove(r.path)
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
