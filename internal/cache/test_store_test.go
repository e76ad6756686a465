package cache

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/cache/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingKV struct {
	KV
	getErr error
	setErr error
	delErr error
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.KV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.KV.Set(ctx, key, value)
}

func (f *failingKV) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.KV.Delete(ctx, key)
}

type profile struct {
	ID    string `json:"id"`
	Count *int   `json:"count,omitempty"`
}

func newTestStore(t *testing.T) (*Store, *memory.KV, *clock) {
	t.Helper()
	kv, err := memory.NewKV(0)
	require.NoError(t, err)
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(kv, WithClock(clk.Now)), kv, clk
}

func TestSetThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	n := 3
	require.NoError(t, Set(ctx, store, "user:1", profile{ID: "1", Count: &n}, time.Minute))
	got, ok, err := Get[profile](ctx, store, "user:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)
	require.NotNil(t, got.Count)
	assert.Equal(t, 3, *got.Count)

	require.NoError(t, Set(ctx, store, "ids", []int64{2, 1}, time.Minute))
	ids, ok, err := Get[[]int64](ctx, store, "ids")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 1}, ids)
}

func TestEntryEnvelopeFormat(t *testing.T) {
	ctx := context.Background()
	store, kv, clk := newTestStore(t)

	require.NoError(t, Set(ctx, store, "k", "v", 90*time.Second))
	raw, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"value":"v","updatedAt":`+itoa(clk.Now().UnixMilli())+`,"ttlMs":90000}`, string(raw))
}

func TestExpiredEntriesNeedAllowExpired(t *testing.T) {
	ctx := context.Background()
	store, kv, clk := newTestStore(t)

	require.NoError(t, Set(ctx, store, "feed", []string{"a"}, time.Minute))

	clk.Advance(time.Minute)
	_, ok, err := Get[[]string](ctx, store, "feed")
	require.NoError(t, err)
	assert.True(t, ok, "age equal to ttl is still fresh")

	clk.Advance(time.Millisecond)
	_, ok, err = Get[[]string](ctx, store, "feed")
	require.NoError(t, err)
	assert.False(t, ok)

	stale, ok, err := Get[[]string](ctx, store, "feed", AllowExpired())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, stale)

	_, present, _ := kv.Get(ctx, "feed")
	assert.True(t, present, "expired entries are not deleted on read")
}

func TestCorruptEntryIsHealed(t *testing.T) {
	ctx := context.Background()
	store, kv, _ := newTestStore(t)

	require.NoError(t, kv.Set(ctx, "bad", []byte("{not json")))
	_, ok, err := Get[string](ctx, store, "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, _ := kv.Get(ctx, "bad")
	assert.False(t, present)

	_, ok, err = Get[string](ctx, store, "bad", AllowExpired())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), store.Metrics().Corrupt)
}

func TestMismatchedValueTypeIsHealed(t *testing.T) {
	ctx := context.Background()
	store, kv, _ := newTestStore(t)

	require.NoError(t, Set(ctx, store, "k", "text", time.Minute))
	_, ok, err := Get[[]int](ctx, store, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, present, _ := kv.Get(ctx, "k")
	assert.False(t, present)
}

func TestNullValueIsMiss(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	var missing *profile
	require.NoError(t, Set(ctx, store, "community:1", missing, time.Minute))
	got, ok, err := Get[*profile](ctx, store, "community:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	require.NoError(t, Set(ctx, store, "k", 1, time.Minute))
	require.NoError(t, store.Clear(ctx, "k"))
	require.NoError(t, store.Clear(ctx, "k"))
	_, ok, err := Get[int](ctx, store, "k", AllowExpired())
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, store.Clear(ctx, "  "))
}

func TestStorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	kv, err := memory.NewKV(0)
	require.NoError(t, err)
	boom := errors.New("disk full")
	store := NewStore(&failingKV{KV: kv, setErr: boom, getErr: boom, delErr: boom})

	assert.ErrorIs(t, Set(ctx, store, "k", 1, time.Minute), boom)
	_, _, err = Get[int](ctx, store, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Clear(ctx, "k"), boom)
}

func TestFirstColdKeyFetchesOnceAndCaches(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"x"}, nil
	}

	got, err := First(ctx, store, "topics:all", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
	assert.Equal(t, int32(1), calls.Load())

	got, err = First(ctx, store, "topics:all", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
	assert.Equal(t, int32(1), calls.Load(), "warm key must not fetch")
}

func TestFirstRefetchesAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store, _, clk := newTestStore(t)

	n := 0
	fetch := func(context.Context) (int, error) {
		n++
		return n, nil
	}
	v, err := First(ctx, store, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clk.Advance(2 * time.Minute)
	v, err = First(ctx, store, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestFirstFetchErrorPropagatesWithoutStaleFallback(t *testing.T) {
	ctx := context.Background()
	store, _, clk := newTestStore(t)

	require.NoError(t, Set(ctx, store, "k", "stale", time.Minute))
	clk.Advance(time.Hour)

	boom := errors.New("backend down")
	_, err := First(ctx, store, "k", time.Minute, func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	stale, ok, err := Get[string](ctx, store, "k", AllowExpired())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stale", stale, "failed fetch leaves the old entry intact")
	assert.Equal(t, uint64(1), store.Metrics().FetchErrors)
}

func TestFirstConcurrentMissesAreNotCoalesced(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	const callers = 4
	var (
		calls   atomic.Int32
		arrived sync.WaitGroup
		release = make(chan struct{})
	)
	arrived.Add(callers)
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		arrived.Done()
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := First(ctx, store, "cold", time.Minute, fetch)
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}
	arrived.Wait()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(callers), calls.Load())
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestInvalidateLogsAndContinues(t *testing.T) {
	ctx := context.Background()
	kv, err := memory.NewKV(0)
	require.NoError(t, err)
	var logs bytes.Buffer
	fkv := &failingKV{KV: kv}
	store := NewStore(fkv, WithLogger(zerolog.New(&logs)))
	require.NoError(t, Set(ctx, store, "a", 1, time.Minute))
	require.NoError(t, Set(ctx, store, "b", 2, time.Minute))

	fkv.delErr = errors.New("redis down")
	store.Invalidate(ctx, "a", "b")
	assert.Equal(t, 2, strings.Count(logs.String(), `"event":"invalidate_failed"`))

	fkv.delErr = nil
	store.Invalidate(ctx, "a", "b")
	_, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = kv.Get(ctx, "b")
	assert.False(t, ok)
}

func TestRememberDropsKeyWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	kv, err := memory.NewKV(0)
	require.NoError(t, err)
	var logs bytes.Buffer
	fkv := &failingKV{KV: kv}
	store := NewStore(fkv, WithLogger(zerolog.New(&logs)))
	require.NoError(t, Set(ctx, store, "p", profile{ID: "old"}, time.Minute))

	fkv.setErr = errors.New("disk full")
	Remember(ctx, store, "p", profile{ID: "new"}, time.Minute)
	assert.Contains(t, logs.String(), `"event":"cache_write_failed"`)
	_, ok, err := kv.Get(ctx, "p")
	require.NoError(t, err)
	assert.False(t, ok)

	fkv.setErr = nil
	Remember(ctx, store, "p", profile{ID: "new"}, time.Minute)
	got, ok, err := Get[profile](ctx, store, "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got.ID)
}
