// Package media turns stored image references into fetchable URLs and
// uploads image content for the repositories.
package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"socialcore/internal/blob"
	"socialcore/internal/domain"
)

const (
	DefaultSignedURLTTL = 24 * time.Hour

	signedURLCacheEntries = 1024
)

// Resolver resolves references against a blob store. Signed URLs are
// memoised for half their lifetime so repeated list fetches do not re-sign
// the same object.
type Resolver struct {
	store     blob.Store
	signedTTL time.Duration
	signed    *expirable.LRU[string, string]
	logger    zerolog.Logger
}

type Option func(*Resolver)

func WithSignedURLTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.signedTTL = ttl
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger.With().Str("component", "blob").Logger()
	}
}

// WithSignedURLCache replaces the memo used for signed URLs.
func WithSignedURLCache(c *expirable.LRU[string, string]) Option {
	return func(r *Resolver) { r.signed = c }
}

func NewResolver(store blob.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		signedTTL: DefaultSignedURLTTL,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.signed == nil {
		r.signed = expirable.NewLRU[string, string](signedURLCacheEntries, nil, r.signedTTL/2)
	}
	return r
}

// IsRemote reports whether ref is already a fully-qualified URL.
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Public resolves ref in a public bucket. It never fails.
func (r *Resolver) Public(bucket string, ref *string) *string {
	path, ok := reference(ref)
	if !ok {
		return nil
	}
	if IsRemote(path) {
		return &path
	}
	u := r.store.PublicURL(bucket, path)
	return &u
}

// Signed resolves ref in a restricted bucket. Signing failures yield nil so
// a missing image does not fail the surrounding fetch.
func (r *Resolver) Signed(ctx context.Context, bucket string, ref *string) *string {
	path, ok := reference(ref)
	if !ok {
		return nil
	}
	if IsRemote(path) {
		return &path
	}
	key := bucket + "/" + path
	if u, ok := r.signed.Get(key); ok {
		return &u
	}
	u, err := r.store.SignedURL(ctx, bucket, path, r.signedTTL)
	if err != nil || u == "" {
		r.logger.Debug().Err(err).Str("bucket", bucket).Str("path", path).Msg("signed url unavailable")
		return nil
	}
	r.signed.Add(key, u)
	return &u
}

// Upload stores img under path and returns the stored object path.
func (r *Resolver) Upload(ctx context.Context, bucket, path string, img domain.ImageUpload) (string, error) {
	if len(img.Data) == 0 {
		return "", domain.ErrEmptyUpload
	}
	stored, err := r.store.Upload(ctx, bucket, path, img.Data, blob.UploadOptions{
		Upsert:      true,
		ContentType: ContentType(img),
	})
	if err != nil {
		return "", err
	}
	r.signed.Remove(bucket + "/" + stored)
	return stored, nil
}

func (r *Resolver) Remove(ctx context.Context, bucket string, paths ...string) error {
	for _, p := range paths {
		r.signed.Remove(bucket + "/" + p)
	}
	return r.store.Remove(ctx, bucket, paths...)
}

// PathFromPublicURL extracts the object path from a URL produced by
// Public. It reports false for URLs that point elsewhere.
func (r *Resolver) PathFromPublicURL(bucket, rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}
	if !IsRemote(rawURL) {
		return rawURL, true
	}
	prefix := r.store.PublicURL(bucket, "")
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = strings.TrimLeft(path, "/")
	return path, path != ""
}

// ObjectPath builds "<owner>/<name>.<ext>".
func ObjectPath(owner, name, ext string) string {
	return fmt.Sprintf("%s/%s.%s", strings.TrimSpace(owner), name, NormalizeExtension(ext))
}

// NormalizeExtension lower-cases ext, strips a leading dot and maps jpeg to
// jpg. An empty extension becomes jpg.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch ext {
	case "", "jpeg":
		return "jpg"
	}
	return ext
}

// ContentType returns the declared type or one derived from the extension.
func ContentType(img domain.ImageUpload) string {
	if ct := strings.TrimSpace(img.ContentType); ct != "" {
		return ct
	}
	ext := NormalizeExtension(img.Extension)
	if ext == "jpg" {
		return "image/jpeg"
	}
	return "image/" + ext
}

func reference(ref *string) (string, bool) {
	if ref == nil {
		return "", false
	}
	s := strings.TrimSpace(*ref)
	return s, s != ""
}
