package s3fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore serves objects from memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string]string
	failKey string
	fetched []string
}

func (m *memStore) ListObjects(_ context.Context, bucket, prefix string) ([]Object, error) {
	if bucket != "bkt" {
		return nil, fmt.Errorf("no such bucket %q", bucket)
	}
	var out []Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memStore) DownloadFile(ctx context.Context, _, key, destPath string) (*DownloadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == m.failKey {
		return nil, errors.New("simulated failure")
	}
	body := m.objects[key]
	if err := os.WriteFile(destPath, []byte(body), 0o644); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.fetched = append(m.fetched, key)
	m.mu.Unlock()
	return &DownloadResult{Key: key, BytesDownloaded: int64(len(body)), Duration: time.Millisecond}, nil
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]string{
		"runs/b/values.csv": "3\n4\n",
		"runs/a/values.csv": "1\n2\n",
		"runs/c.parquet":    "PAR1",
		"other/x.csv":       "9\n",
	}}
}

func TestFetcherDownloadsInKeyOrder(t *testing.T) {
	store := newMemStore()
	dir := filepath.Join(t.TempDir(), "dl")

	f := NewFetcher(store, FetchConfig{URI: "s3://bkt/runs/", DownloadDir: dir, Concurrency: 2, OwnsDir: true})
	res, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(res.LocalFiles) != 3 {
		t.Fatalf("got %d files, want 3", len(res.LocalFiles))
	}
	wantBases := []string{"00000-values.csv", "00001-values.csv", "00002-c.parquet"}
	for i, p := range res.LocalFiles {
		if filepath.Base(p) != wantBases[i] {
			t.Errorf("LocalFiles[%d] = %s, want %s", i, filepath.Base(p), wantBases[i])
		}
	}
	first, err := os.ReadFile(res.LocalFiles[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "1\n2\n" {
		t.Errorf("first file = %q, want runs/a contents", first)
	}
	if res.Bytes != 12 {
		t.Errorf("Bytes = %d, want 12", res.Bytes)
	}
	if res.Bucket != "bkt" || res.Prefix != "runs/" {
		t.Errorf("result location = %s/%s", res.Bucket, res.Prefix)
	}

	if err := f.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("download dir should be removed after Cleanup")
	}
}

func TestFetcherInclude(t *testing.T) {
	store := newMemStore()
	f := NewFetcher(store, FetchConfig{
		URI:         "s3://bkt/runs/",
		DownloadDir: t.TempDir(),
		Include:     func(key string) bool { return strings.HasSuffix(key, ".csv") },
	})
	res, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.LocalFiles) != 2 {
		t.Errorf("got %d files, want 2", len(res.LocalFiles))
	}
}

func TestFetcherCleanupKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(own, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(newMemStore(), FetchConfig{URI: "s3://bkt/runs/", DownloadDir: dir})
	res, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := f.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	for _, p := range res.LocalFiles {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed after Cleanup", filepath.Base(p))
		}
	}
	if _, err := os.Stat(own); err != nil {
		t.Errorf("existing file removed by Cleanup: %v", err)
	}
}

func TestFetcherKeepFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFetcher(newMemStore(), FetchConfig{URI: "s3://bkt/other/", DownloadDir: dir, KeepFiles: true})
	res, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := f.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(res.LocalFiles[0]); err != nil {
		t.Errorf("file should survive Cleanup with KeepFiles: %v", err)
	}
}

func TestFetcherErrors(t *testing.T) {
	t.Run("empty prefix", func(t *testing.T) {
		f := NewFetcher(newMemStore(), FetchConfig{URI: "s3://bkt/missing/", DownloadDir: t.TempDir()})
		if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrNoObjects) {
			t.Errorf("error = %v, want ErrNoObjects", err)
		}
	})

	t.Run("bad uri", func(t *testing.T) {
		f := NewFetcher(newMemStore(), FetchConfig{URI: "bkt/runs", DownloadDir: t.TempDir()})
		if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrInvalidURI) {
			t.Errorf("error = %v, want ErrInvalidURI", err)
		}
	})

	t.Run("download failure", func(t *testing.T) {
		store := newMemStore()
		store.failKey = "runs/b/values.csv"
		f := NewFetcher(store, FetchConfig{URI: "s3://bkt/runs/", DownloadDir: t.TempDir(), Concurrency: 1})
		_, err := f.Fetch(context.Background())
		if err == nil || !strings.Contains(err.Error(), "runs/b/values.csv") {
			t.Errorf("error = %v, want failure naming the key", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f := NewFetcher(newMemStore(), FetchConfig{URI: "s3://bkt/runs/", DownloadDir: t.TempDir()})
		if _, err := f.Fetch(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"a/b/c/values.csv.gz", "values.csv.gz"},
		{"values.parquet", "values.parquet"},
		{"../../etc/passwd", "passwd"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.key); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
	if got := localName(7, "x/y.csv"); got != "00007-y.csv" {
		t.Errorf("localName = %q", got)
	}
}
