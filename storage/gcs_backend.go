package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/mitchellh/go-homedir"
	"google.golang.org/api/option"

	"basic-cleaning/config"
)

// gcsObjects is the part of the GCS client the backend uses
type gcsObjects interface {
	NewWriter(ctx context.Context, bucket, key string) io.WriteCloser
	NewReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Close() error
}

type gcsClient struct {
	client *gcs.Client
}

func (c gcsClient) NewWriter(ctx context.Context, bucket, key string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/csv"
	return w
}

func (c gcsClient) NewReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(key).NewReader(ctx)
}

func (c gcsClient) Close() error {
	return c.client.Close()
}

// GCSBackend stores blobs in a Google Cloud Storage bucket
type GCSBackend struct {
	objects gcsObjects
	bucket  string
	prefix  string
}

// NewGCSBackend creates a storage client using GCS_CREDENTIALS when set, else
// application default credentials
func NewGCSBackend(ctx context.Context, cfg *config.Config) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		contents, err := pathOrContents(cfg.GCSCredentials)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON([]byte(contents)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Storage client: %w", err)
	}
	return newGCSBackend(gcsClient{client: client}, cfg.GCSBucket, cfg.GCSPrefix), nil
}

func newGCSBackend(objects gcsObjects, bucket, prefix string) *GCSBackend {
	return &GCSBackend{objects: objects, bucket: bucket, prefix: prefix}
}

func (b *GCSBackend) Upload(ctx context.Context, key, src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	objectKey := b.objectKey(key)
	w := b.objects.NewWriter(ctx, b.bucket, objectKey)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload artifact, %w", err)
	}
	// the object is only committed once Close succeeds
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to commit artifact, %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", b.bucket, objectKey), nil
}

func (b *GCSBackend) Download(ctx context.Context, key, dst string) error {
	r, err := b.objects.NewReader(ctx, b.bucket, b.objectKey(key))
	if err != nil {
		return fmt.Errorf("failed to get object reader: %w", err)
	}
	defer r.Close()

	return writeFileAtomic(dst, r)
}

func (b *GCSBackend) Close() error {
	return b.objects.Close()
}

func (b *GCSBackend) objectKey(key string) string {
	return path.Join(b.prefix, key)
}

// pathOrContents returns the contents of the file at poc, or poc itself when it is
// not a readable path (inline JSON credentials)
func pathOrContents(poc string) (string, error) {
	if len(poc) == 0 {
		return poc, nil
	}

	p, err := homedir.Expand(poc)
	if err != nil {
		return poc, err
	}

	if _, err := os.Stat(p); err == nil {
		contents, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		return string(contents), nil
	}

	return poc, nil
}
