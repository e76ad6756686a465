package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry is the persisted envelope around a cached value.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt int64           `json:"updatedAt"`
	TTLMs     int64           `json:"ttlMs"`
}

// Expired reports whether the entry is older than its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	return now.UnixMilli()-e.UpdatedAt > e.TTLMs
}

// Store is a TTL-aware cache over a KV backend. Expiry is checked lazily on
// read; nothing is evicted in the background.
type Store struct {
	kv      KV
	now     func() time.Time
	logger  zerolog.Logger
	metrics Metrics
}

type Option func(*Store)

// WithClock overrides the time source used for stamping and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "cache").Logger()
	}
}

func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type readOptions struct {
	allowExpired bool
}

// ReadOption adjusts a single Get.
type ReadOption func(*readOptions)

// AllowExpired makes Get return a value even when its TTL has elapsed.
func AllowExpired() ReadOption {
	return func(o *readOptions) { o.allowExpired = true }
}

// Set stores value under key, stamped with the current time.
func Set[T any](ctx context.Context, s *Store, key string, value T, ttl time.Duration) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	entry, err := json.Marshal(Entry{
		Value:     raw,
		UpdatedAt: s.now().UnixMilli(),
		TTLMs:     ttl.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, entry); err != nil {
		return err
	}
	s.metrics.writes.Add(1)
	return nil
}

// Get returns the value cached under key. Missing, expired (unless
// AllowExpired is given) and null values are reported as a miss. An entry
// that cannot be decoded is deleted and reported as a miss. Errors from the
// KV backend are returned as is.
func Get[T any](ctx context.Context, s *Store, key string, opts ...ReadOption) (T, bool, error) {
	var zero T
	key, err := normalizeKey(key)
	if err != nil {
		return zero, false, err
	}
	var ro readOptions
	for _, opt := range opts {
		opt(&ro)
	}

	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok || len(raw) == 0 {
		s.metrics.misses.Add(1)
		return zero, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.heal(ctx, key, err)
		return zero, false, nil
	}
	if entry.Expired(s.now()) {
		if !ro.allowExpired {
			s.metrics.expired.Add(1)
			return zero, false, nil
		}
		s.metrics.staleHits.Add(1)
	}
	if isNull(entry.Value) {
		s.metrics.misses.Add(1)
		return zero, false, nil
	}

	var value T
	if err := json.Unmarshal(entry.Value, &value); err != nil {
		s.heal(ctx, key, err)
		return zero, false, nil
	}
	s.metrics.hits.Add(1)
	return value, true, nil
}

// Clear deletes the entry under key. Clearing a missing key is a no-op.
func (s *Store) Clear(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return err
	}
	s.metrics.clears.Add(1)
	return nil
}

// ClearAll clears every key, stopping at the first failure.
func (s *Store) ClearAll(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.Clear(ctx, key); err != nil {
			return fmt.Errorf("clear %q: %w", key, err)
		}
	}
	return nil
}

// Invalidate clears keys after a committed write. Every key is attempted and
// failures are logged, not returned.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.Clear(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("event", "invalidate_failed").Str("key", key).Msg("cache invalidation failed")
		}
	}
}

// Remember caches value after a committed write. A failed write is logged
// and key is invalidated.
func Remember[T any](ctx context.Context, s *Store, key string, value T, ttl time.Duration) {
	if err := Set(ctx, s, key, value, ttl); err != nil {
		s.logger.Warn().Err(err).Str("event", "cache_write_failed").Str("key", key).Msg("cache write failed")
		s.Invalidate(ctx, key)
	}
}

func (s *Store) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}

func (s *Store) heal(ctx context.Context, key string, cause error) {
	s.metrics.corrupt.Add(1)
	s.metrics.misses.Add(1)
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("delete corrupt cache entry")
		return
	}
	s.logger.Debug().Err(cause).Str("key", key).Msg("dropped corrupt cache entry")
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("cache key is required")
	}
	return key, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
