// Package s3 implements blob.Store on an S3-compatible object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"socialcore/internal/blob"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicBaseURL prefixes public object URLs. Defaults to the endpoint.
	PublicBaseURL string
	// CreateBuckets makes missing buckets on first use instead of failing
	// with blob.ErrBucketNotFound.
	CreateBuckets bool
}

type Store struct {
	client        *minio.Client
	region        string
	publicBaseURL string
	createBuckets bool

	mu      sync.Mutex
	ensured map[string]*bucketInit
}

type bucketInit struct {
	once sync.Once
	err  error
}

var _ blob.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = strings.TrimRight(client.EndpointURL().String(), "/")
	}
	return &Store{
		client:        client,
		region:        region,
		publicBaseURL: base,
		createBuckets: cfg.CreateBuckets,
		ensured:       make(map[string]*bucketInit),
	}, nil
}

func (s *Store) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	bi, ok := s.ensured[bucket]
	if !ok {
		bi = &bucketInit{}
		s.ensured[bucket] = bi
	}
	s.mu.Unlock()

	bi.once.Do(func() {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			bi.err = err
			return
		}
		if exists {
			return
		}
		if !s.createBuckets {
			bi.err = blob.ErrBucketNotFound
			return
		}
		bi.err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
	})
	if bi.err != nil {
		// allow a later retry after transient failures
		s.mu.Lock()
		if s.ensured[bucket] == bi {
			delete(s.ensured, bucket)
		}
		s.mu.Unlock()
	}
	return bi.err
}

func (s *Store) Upload(ctx context.Context, bucket, path string, data []byte, opts blob.UploadOptions) (string, error) {
	key := objectKey(path)
	if key == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	if !opts.Upsert {
		_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return "", fmt.Errorf("upload %s/%s: %w", bucket, key, blob.ErrExists)
		}
		if mapped := mapError(err); !errors.Is(mapped, blob.ErrNotFound) {
			return "", mapped
		}
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", mapError(err)
	}
	return key, nil
}

func (s *Store) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, objectKey(path), ttl, nil)
	if err != nil {
		return "", mapError(err)
	}
	return u.String(), nil
}

func (s *Store) PublicURL(bucket, path string) string {
	return s.publicBaseURL + "/" + bucket + "/" + objectKey(path)
}

func (s *Store) Remove(ctx context.Context, bucket string, paths ...string) error {
	for _, p := range paths {
		key := objectKey(p)
		if key == "" {
			continue
		}
		if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
			mapped := mapError(err)
			if errors.Is(mapped, blob.ErrNotFound) {
				continue
			}
			return mapped
		}
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %v", blob.ErrBucketNotFound, err)
	case "NoSuchKey":
		return fmt.Errorf("%w: %v", blob.ErrNotFound, err)
	}
	return err
}

func objectKey(path string) string {
	return strings.TrimLeft(strings.TrimSpace(path), "/")
}
