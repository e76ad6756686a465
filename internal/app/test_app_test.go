package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/backend/backendtest"
	"socialcore/internal/config"
	"socialcore/internal/repository/schema"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{Backend: config.CacheMemory},
		Blob:  config.BlobConfig{Backend: config.BlobMemory, SignedURLTTL: time.Hour},
	}
}

func TestBuildWithoutDatabase(t *testing.T) {
	a, err := Build(memoryConfig(t), zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Repos()
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.NoError(t, a.Health(context.Background()))
	require.NotNil(t, a.Cache)
	require.NotNil(t, a.Blobs)
}

func TestBuildWiresRepositoriesThroughCache(t *testing.T) {
	db := backendtest.New()
	db.Return(backendtest.OpSelect, schema.Topics, `[{"id":1,"name":"go","label":"Go","icon":"code","tone":"blue"}]`)
	a, err := Build(memoryConfig(t), zerolog.Nop(), db)
	require.NoError(t, err)
	defer a.Close()

	repos, err := a.Repos()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		topics, err := repos.Topics.Topics(context.Background())
		require.NoError(t, err)
		assert.Len(t, topics, 1)
	}
	assert.Len(t, db.Calls(backendtest.OpSelect, schema.Topics), 1)
	m := a.Cache.Metrics()
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Writes)

	require.NoError(t, repos.Features.Refresh(context.Background()))
	assert.NotNil(t, repos.Features.Status().LastFetchedAt)

	comments, err := repos.Comments.CommentsForPost(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, comments)
	banned, err := repos.Moderation.IsBanned(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestServerExposesCacheMetrics(t *testing.T) {
	a, err := Build(memoryConfig(t), zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	srv := a.NewServer(":0")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socialcore_cache_writes_total 0")
}

func TestBuildRejectsUnknownCache(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Cache.Backend = "tape"
	_, err := Build(cfg, zerolog.Nop(), nil)
	assert.Error(t, err)
}
