// Package app wires configuration into the cache, blob and backend stores
// and the repositories built on them.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/cache"
	"socialcore/internal/config"
	"socialcore/internal/featureconfig"
	"socialcore/internal/repository/comment"
	"socialcore/internal/repository/community"
	featureconfigrepo "socialcore/internal/repository/featureconfig"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/moderation"
	"socialcore/internal/repository/post"
	"socialcore/internal/repository/topic"
	"socialcore/internal/repository/user"
	"socialcore/internal/telemetry"
)

// ErrNoDatabase is returned by Repos when DATABASE_URL is not configured.
var ErrNoDatabase = errors.New("DATABASE_URL is not configured")

type Repositories struct {
	Posts         *post.Repository
	Communities   *community.Repository
	Users         *user.Repository
	Topics        *topic.Repository
	Comments      *comment.Repository
	Moderation    *moderation.Repository
	FeatureConfig *featureconfigrepo.Repository
	// Features is the in-memory feature config view over FeatureConfig.
	Features *featureconfig.Store
}

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Cache    *cache.Store
	Blobs    blob.Store
	Media    *media.Resolver
	Backend  backend.Client
	Registry *prometheus.Registry

	repos   *Repositories
	closers []func() error
}

// New opens every store named by cfg. Without a database URL the cache and
// blob stores are still usable; Repos reports ErrNoDatabase.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	var db backend.Client
	var closers []func() error
	if cfg.HasDatabase() {
		client, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		db = client
		closers = append(closers, func() error { client.Close(); return nil })
	}
	a, err := Build(cfg, logger, db)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	a.closers = append(closers, a.closers...)
	return a, nil
}

// Build wires the stores around an existing backend client, which may be nil.
func Build(cfg *config.Config, logger zerolog.Logger, db backend.Client) (*App, error) {
	kv, closeKV, err := initKV(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Backend: db, Registry: prometheus.NewRegistry()}
	if closeKV != nil {
		a.closers = append(a.closers, closeKV)
	}

	blobs, err := initBlobs(cfg.Blob, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Blobs = blobs
	a.Cache = cache.NewStore(kv, cache.WithLogger(logger))
	a.Media = media.NewResolver(blobs, media.WithSignedURLTTL(cfg.Blob.SignedURLTTL), media.WithLogger(logger))
	if err := telemetry.RegisterCacheMetrics(a.Registry, a.Cache); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to register cache metrics: %w", err)
	}

	if db != nil {
		cfgRepo := featureconfigrepo.New(db)
		a.repos = &Repositories{
			Posts:         post.New(db, a.Cache, a.Media, logger),
			Communities:   community.New(db, a.Cache, a.Media, logger),
			Users:         user.New(db, a.Cache, a.Media, logger),
			Topics:        topic.New(db, a.Cache, logger),
			Comments:      comment.New(db, a.Cache, a.Media, logger),
			Moderation:    moderation.New(db, a.Media, logger),
			FeatureConfig: cfgRepo,
			Features:      featureconfig.NewStore(cfgRepo, featureconfig.WithLogger(logger)),
		}
	}
	return a, nil
}

func (a *App) Repos() (*Repositories, error) {
	if a.repos == nil {
		return nil, ErrNoDatabase
	}
	return a.repos, nil
}

// Health checks the backend when it supports pinging.
func (a *App) Health(ctx context.Context) error {
	if p, ok := a.Backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
