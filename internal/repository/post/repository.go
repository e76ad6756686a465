// Package post implements domain.PostRepository over the backend, the
// cache and the blob resolver.
package post

import (
	"context"

	"github.com/rs/zerolog"

	"socialcore/internal/backend"
	"socialcore/internal/cache"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/schema"
)

// resolveConcurrency bounds parallel URL resolution for one page.
const resolveConcurrency = 8

type Repository struct {
	db     backend.Client
	cache  *cache.Store
	media  *media.Resolver
	logger zerolog.Logger
}

var _ domain.PostRepository = (*Repository)(nil)

func New(db backend.Client, store *cache.Store, resolver *media.Resolver, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		cache:  store,
		media:  resolver,
		logger: logger.With().Str("component", "repository.post").Logger(),
	}
}

// postQuery is the post projection with author and community embeds. The
// counted form adds likes and comments aggregates.
func postQuery(withCounts bool) backend.Query {
	q := backend.From(schema.Posts).
		Select("*").
		Embed("communities", "title", "image_url").
		Embed("profiles", "name", "photo_url")
	if withCounts {
		q = q.EmbedCount("likes").EmbedCount("comments")
	}
	return q
}

// withCountsFallback runs fn with the counted projection. If the backend
// cannot embed the aggregates it runs fn once more with the reduced
// projection, leaving counts at zero.
func withCountsFallback[T any](ctx context.Context, logger zerolog.Logger, fn func(ctx context.Context, projection backend.Query) (T, error)) (T, error) {
	out, err := fn(ctx, postQuery(true))
	if backend.HasCode(err, backend.CodeUnsupportedRelationship) {
		logger.Debug().Err(err).Msg("aggregate embeds unsupported, retrying without counts")
		return fn(ctx, postQuery(false))
	}
	return out, err
}

func (r *Repository) selectPosts(ctx context.Context, shape func(backend.Query) backend.Query) ([]postRow, error) {
	return withCountsFallback(ctx, r.logger, func(ctx context.Context, projection backend.Query) ([]postRow, error) {
		return backend.SelectInto[postRow](ctx, r.db, shape(projection))
	})
}
