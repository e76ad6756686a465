// Package blob stores image objects in named buckets and turns object paths
// into fetchable URLs.
package blob

import (
	"context"
	"errors"
	"time"
)

const (
	BucketPostImages      = "post-images"
	BucketCommunityImages = "community-images"
	BucketUserAvatars     = "user-avatars"
)

var (
	ErrNotFound       = errors.New("blob not found")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrExists         = errors.New("blob already exists")
)

type UploadOptions struct {
	// Upsert overwrites an existing object instead of failing with ErrExists.
	Upsert      bool
	ContentType string
}

// Store is a path-addressed object store.
type Store interface {
	// Upload writes data and returns the stored object path.
	Upload(ctx context.Context, bucket, path string, data []byte, opts UploadOptions) (string, error)
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
	// PublicURL formats the URL of an object in a public bucket. It does no I/O.
	PublicURL(bucket, path string) string
	// Remove deletes objects. Missing objects are ignored.
	Remove(ctx context.Context, bucket string, paths ...string) error
}
