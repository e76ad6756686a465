// Package repotest wires repositories to in-memory collaborators for tests.
package repotest

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"socialcore/internal/backend/backendtest"
	"socialcore/internal/blob"
	"socialcore/internal/cache"
	"socialcore/internal/cache/memory"
	"socialcore/internal/repository/media"
)

// Harness holds a scripted backend, an in-memory blob store and a cache over
// an in-memory KV. Log output is captured in Logs.
type Harness struct {
	DB     *backendtest.Fake
	Blobs  *blob.MemoryStore
	KV     *memory.KV
	Cache  *cache.Store
	Media  *media.Resolver
	Logs   *LogBuffer
	Logger zerolog.Logger

	faults *faultKV
}

func New(t testing.TB) *Harness {
	t.Helper()
	kv, err := memory.NewKV(0)
	if err != nil {
		t.Fatalf("new kv: %v", err)
	}
	logs := &LogBuffer{}
	logger := zerolog.New(logs)
	blobs := blob.NewMemoryStore()
	faults := &faultKV{KV: kv}
	return &Harness{
		DB:     backendtest.New(),
		Blobs:  blobs,
		KV:     kv,
		Cache:  cache.NewStore(faults, cache.WithLogger(logger)),
		Media:  media.NewResolver(blobs, media.WithLogger(logger)),
		Logs:   logs,
		Logger: logger,
		faults: faults,
	}
}

// FailCacheWrites makes every later cache write and delete fail with err.
// Reads still go to the underlying KV. A nil err restores normal behavior.
func (h *Harness) FailCacheWrites(err error) {
	h.faults.mu.Lock()
	defer h.faults.mu.Unlock()
	h.faults.writeErr = err
}

// Seed stores value under key as a fresh cache entry.
func (h *Harness) Seed(t testing.TB, key string, value any) {
	t.Helper()
	if err := cache.Set(context.Background(), h.Cache, key, value, time.Hour); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

// Cached reports whether key holds an entry, fresh or not.
func (h *Harness) Cached(key string) bool {
	_, ok, _ := h.KV.Get(context.Background(), key)
	return ok
}

type faultKV struct {
	*memory.KV
	mu       sync.Mutex
	writeErr error
}

func (f *faultKV) fault() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeErr
}

func (f *faultKV) Set(ctx context.Context, key string, value []byte) error {
	if err := f.fault(); err != nil {
		return err
	}
	return f.KV.Set(ctx, key, value)
}

func (f *faultKV) Delete(ctx context.Context, key string) error {
	if err := f.fault(); err != nil {
		return err
	}
	return f.KV.Delete(ctx, key)
}

// LogBuffer is a bytes.Buffer safe for concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
