package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SnapshotFetcher downloads read-optimized warehouse snapshots from
// object storage. The service fetches the current snapshot at startup
// and opens it locally with the SQLite adapter.
type SnapshotFetcher struct {
	client *s3.Client
	bucket string
}

// S3Config holds configuration for the snapshot bucket.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// NewSnapshotFetcher creates a snapshot fetcher for the given bucket.
func NewSnapshotFetcher(ctx context.Context, bucket string, cfg S3Config) (*SnapshotFetcher, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &SnapshotFetcher{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: bucket,
	}, nil
}

// NewSnapshotFetcherWithClient creates a fetcher with a pre-configured
// client (used by tests).
func NewSnapshotFetcherWithClient(client *s3.Client, bucket string) *SnapshotFetcher {
	return &SnapshotFetcher{client: client, bucket: bucket}
}

// Fetch downloads the snapshot object to localPath. The download goes
// through a temp file and an atomic rename so a half-written snapshot is
// never opened.
func (f *SnapshotFetcher) Fetch(ctx context.Context, objectKey, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("%w: fetching snapshot %s: %v", ErrUnavailable, objectKey, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: downloading snapshot %s: %v", ErrUnavailable, objectKey, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize snapshot download: %w", err)
	}

	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return fmt.Errorf("failed to install snapshot: %w", err)
	}
	return nil
}
