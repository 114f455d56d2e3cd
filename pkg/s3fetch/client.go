package s3fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object is one listed S3 object.
type Object struct {
	Key  string
	Size int64
}

// Client provides the S3 operations used to read value sources.
type Client struct {
	s3Client   *s3.Client
	downloader *Downloader
}

// NewClient creates a client using the default AWS configuration chain.
func NewClient(ctx context.Context, dcfg DownloaderConfig) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg, dcfg), nil
}

// NewClientWithConfig creates a client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config, dcfg DownloaderConfig) *Client {
	s3Client := s3.NewFromConfig(cfg)
	return &Client{
		s3Client:   s3Client,
		downloader: NewDownloader(s3Client, dcfg),
	}
}

// StreamObject returns a reader for an S3 object.
func (c *Client) StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", FormatURI(bucket, key), err)
	}
	return resp.Body, nil
}

// ListObjects returns every object under prefix in key order. Keys ending
// in "/" (console folder markers) are skipped.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error) {
	p := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var objects []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", FormatURI(bucket, prefix), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || key[len(key)-1] == '/' {
				continue
			}
			objects = append(objects, Object{Key: key, Size: aws.ToInt64(obj.Size)})
		}
	}
	return objects, nil
}

// DownloadObject downloads an object with parallel range requests and
// returns a reader over a temp file that is removed on Close.
func (c *Client) DownloadObject(ctx context.Context, bucket, key string) (io.ReadCloser, *DownloadResult, error) {
	return c.downloader.DownloadToReader(ctx, bucket, key)
}

// DownloadFile downloads an object to destPath.
func (c *Client) DownloadFile(ctx context.Context, bucket, key, destPath string) (*DownloadResult, error) {
	return c.downloader.DownloadToFile(ctx, bucket, key, destPath)
}
