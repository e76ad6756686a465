package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("BLOB_BACKEND", "")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, CacheDisk, cfg.Cache.Backend)
	assert.Equal(t, BlobMemory, cfg.Blob.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Blob.SignedURLTTL)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.False(t, cfg.HasDatabase())
}

func TestParseRedisRequiresAddr(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "")
	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ADDR")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg := Config{Cache: CacheConfig{Backend: "tape"}, Blob: BlobConfig{Backend: BlobMemory, SignedURLTTL: time.Hour}}
	assert.ErrorContains(t, cfg.Validate(), "CACHE_BACKEND")

	cfg.Cache.Backend = CacheMemory
	cfg.Blob.Backend = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "BLOB_BACKEND")

	cfg.Blob.Backend = BlobS3
	assert.ErrorContains(t, cfg.Validate(), "S3_ENDPOINT")
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := Config{
		DatabaseURL: "postgres://app:hunter2@db:5432/social",
		Blob:        BlobConfig{AccessKey: "AKIA123", SecretKey: "topsecret"},
	}
	s := cfg.String()
	assert.Contains(t, s, "postgres://app:****@db:5432/social")
	for _, secret := range []string{"hunter2", "AKIA123", "topsecret"} {
		assert.False(t, strings.Contains(s, secret), secret)
	}
}
