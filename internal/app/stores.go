package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"socialcore/internal/backend/postgres"
	"socialcore/internal/blob"
	blobs3 "socialcore/internal/blob/s3"
	"socialcore/internal/cache"
	"socialcore/internal/cache/badgerkv"
	"socialcore/internal/cache/disk"
	"socialcore/internal/cache/memory"
	"socialcore/internal/cache/rediskv"
	"socialcore/internal/config"
)

// initKV opens the cache backend named by the configuration. The returned
// closer is nil for backends without resources to release.
func initKV(cfg config.CacheConfig, logger zerolog.Logger) (cache.KV, func() error, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		kv, err := memory.NewKV(cfg.MaxEntries)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("backend", "memory").Int("max_entries", cfg.MaxEntries).Msg("cache store ready")
		return kv, nil, nil
	case config.CacheDisk:
		kv, err := disk.New(disk.Config{Root: cfg.Dir, MaxEntries: cfg.MaxEntries})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize disk cache: %w", err)
		}
		logger.Info().Str("backend", "disk").Str("dir", cfg.Dir).Msg("cache store ready")
		return kv, nil, nil
	case config.CacheRedis:
		kv, err := rediskv.New(rediskv.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		logger.Info().Str("backend", "redis").Str("addr", cfg.RedisAddr).Msg("cache store ready")
		return kv, kv.Close, nil
	case config.CacheBadger:
		kv, err := badgerkv.Open(badgerkv.Config{Dir: cfg.BadgerDir})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize badger cache: %w", err)
		}
		logger.Info().Str("backend", "badger").Str("dir", cfg.BadgerDir).Msg("cache store ready")
		return kv, kv.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// initBlobs returns the object store. The memory store serves local runs
// and tests.
func initBlobs(cfg config.BlobConfig, logger zerolog.Logger) (blob.Store, error) {
	switch cfg.Backend {
	case config.BlobMemory:
		logger.Info().Str("backend", "memory").Msg("blob store ready")
		return blob.NewMemoryStore(), nil
	case config.BlobS3:
		store, err := blobs3.New(blobs3.Config{
			Endpoint:      cfg.Endpoint,
			Region:        cfg.Region,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			UseSSL:        cfg.UseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
			CreateBuckets: cfg.CreateBuckets,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 blob store: %w", err)
		}
		logger.Info().Str("backend", "s3").Str("endpoint", cfg.Endpoint).Msg("blob store ready")
		return store, nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
}

// initDatabase connects to Postgres, applying migrations first when asked.
func initDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*postgres.Client, error) {
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	client, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns},
		postgres.WithLogger(logger.With().Str("component", "backend").Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return client, nil
}
