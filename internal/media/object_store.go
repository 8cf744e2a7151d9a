package media

import (
	"context"
	"time"
)

// ObjectStore is the remote object storage the pipeline writes to.
type ObjectStore interface {
	// Upload stores data at bucket/path. With upsert unset an existing
	// object is an error.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
	// Remove deletes paths from bucket in one call. Missing objects are
	// not an error.
	Remove(ctx context.Context, bucket string, paths []string) error
	PublicURL(bucket, path string) string
	SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error)
}
