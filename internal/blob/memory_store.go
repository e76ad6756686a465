package blob

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type Op string

const (
	OpUpload Op = "upload"
	OpSign   Op = "sign"
	OpRemove Op = "remove"
)

const DefaultMemoryBaseURL = "http://localhost/storage/v1/object"

// MemoryStore keeps objects in process memory. Failures can be injected per
// operation for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	buckets map[string]map[string]memoryObject
	// fixed buckets reject uploads to names not registered up front
	fixed bool
	fail  map[Op][]error
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates a store. When buckets are given, only those exist;
// otherwise buckets are created on first upload.
func NewMemoryStore(buckets ...string) *MemoryStore {
	s := &MemoryStore{
		baseURL: DefaultMemoryBaseURL,
		buckets: make(map[string]map[string]memoryObject),
		fail:    make(map[Op][]error),
	}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]memoryObject)
	}
	s.fixed = len(buckets) > 0
	return s
}

var _ Store = (*MemoryStore)(nil)

// FailNext makes the next call of op return err.
func (s *MemoryStore) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = append(s.fail[op], err)
}

func (s *MemoryStore) Upload(_ context.Context, bucket, path string, data []byte, opts UploadOptions) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	path = normalizePath(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpUpload); err != nil {
		return "", err
	}
	objects, ok := s.buckets[bucket]
	if !ok {
		if s.fixed {
			return "", fmt.Errorf("upload %s/%s: %w", bucket, path, ErrBucketNotFound)
		}
		objects = make(map[string]memoryObject)
		s.buckets[bucket] = objects
	}
	if _, exists := objects[path]; exists && !opts.Upsert {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, path, ErrExists)
	}
	objects[path] = memoryObject{data: append([]byte(nil), data...), contentType: opts.ContentType}
	return path, nil
}

func (s *MemoryStore) SignedURL(_ context.Context, bucket, path string, ttl time.Duration) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	path = normalizePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpSign); err != nil {
		return "", err
	}
	objects, ok := s.buckets[bucket]
	if !ok {
		return "", ErrBucketNotFound
	}
	if _, ok := objects[path]; !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("%s/sign/%s/%s?expires_in=%d", s.baseURL, bucket, escapePath(path), int64(ttl/time.Second)), nil
}

func (s *MemoryStore) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/public/%s/%s", s.baseURL, bucket, escapePath(normalizePath(path)))
}

func (s *MemoryStore) Remove(_ context.Context, bucket string, paths ...string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpRemove); err != nil {
		return err
	}
	objects := s.buckets[bucket]
	for _, p := range paths {
		delete(objects, normalizePath(p))
	}
	return nil
}

// Get returns a copy of the stored bytes.
func (s *MemoryStore) Get(bucket, path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[bucket][normalizePath(path)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// List returns the sorted object paths of bucket.
func (s *MemoryStore) List(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.buckets[bucket]))
	for p := range s.buckets[bucket] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) injected(op Op) error {
	queue := s.fail[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.fail[op] = queue[1:]
	return err
}

func normalizePath(path string) string {
	return strings.TrimLeft(strings.TrimSpace(path), "/")
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
