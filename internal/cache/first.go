package cache

import (
	"context"
	"time"
)

// Fetcher loads a value from the source of truth.
type Fetcher[T any] func(ctx context.Context) (T, error)

// First serves a fresh cached value when there is one. Otherwise it calls
// fetch, stores the result under key with ttl and returns it. Fetch errors
// are returned unchanged and nothing is cached. Concurrent misses on the same
// key each call fetch; the last write wins.
func First[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fetch Fetcher[T]) (T, error) {
	var zero T
	if cached, ok, err := Get[T](ctx, s, key); err != nil {
		return zero, err
	} else if ok {
		return cached, nil
	}

	s.metrics.fetches.Add(1)
	value, err := fetch(ctx)
	if err != nil {
		s.metrics.fetchErrors.Add(1)
		return zero, err
	}
	if err := Set(ctx, s, key, value, ttl); err != nil {
		return zero, err
	}
	return value, nil
}
