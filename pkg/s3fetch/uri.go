package s3fetch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidURI indicates a string that is not an s3://bucket[/key] URI.
var ErrInvalidURI = errors.New("invalid S3 URI")

// IsS3URI reports whether s uses the s3:// scheme.
func IsS3URI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseS3URI parses an S3 URI (s3://bucket/key) into bucket and key components.
// The key may be empty or a prefix.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("%q: must start with s3://: %w", uri, ErrInvalidURI)
	}

	path := strings.TrimPrefix(uri, "s3://")
	bucket, key, _ = strings.Cut(path, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q: missing bucket name: %w", uri, ErrInvalidURI)
	}
	return bucket, key, nil
}

// FormatURI is the inverse of ParseS3URI.
func FormatURI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
