// Package comment implements domain.CommentRepository.
package comment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/cache"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/schema"
)

type Repository struct {
	db     backend.Client
	cache  *cache.Store
	media  *media.Resolver
	logger zerolog.Logger
}

var _ domain.CommentRepository = (*Repository)(nil)

func New(db backend.Client, store *cache.Store, resolver *media.Resolver, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		cache:  store,
		media:  resolver,
		logger: logger.With().Str("component", "repository.comment").Logger(),
	}
}

type commentRow struct {
	ID        int64                  `json:"id"`
	PostID    int64                  `json:"post_id"`
	UserID    string                 `json:"user_id"`
	Content   string                 `json:"content"`
	CreatedAt *time.Time             `json:"created_at"`
	Profiles  schema.One[profileRef] `json:"profiles"`
}

type profileRef struct {
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

func (r *Repository) toDomain(row commentRow) domain.Comment {
	c := domain.Comment{
		ID:        row.ID,
		PostID:    row.PostID,
		UserID:    row.UserID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}
	if u := row.Profiles.Value; u != nil {
		c.UserName = u.Name
		c.UserImageURL = r.media.Public(blob.BucketUserAvatars, u.PhotoURL)
	}
	return c
}

func (r *Repository) toDomainAll(rows []commentRow) []domain.Comment {
	out := make([]domain.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.toDomain(row))
	}
	return out
}

func commentQuery() backend.Query {
	return backend.From(schema.Comments).Select("*").Embed("profiles", "name", "photo_url")
}

// CommentsForPost lists a post's comments oldest first.
func (r *Repository) CommentsForPost(ctx context.Context, postID int64) ([]domain.Comment, error) {
	return cache.First(ctx, r.cache, policy.CommentsByPost(postID), policy.TTLComments, func(ctx context.Context) ([]domain.Comment, error) {
		rows, err := backend.SelectInto[commentRow](ctx, r.db,
			commentQuery().Where(backend.Eq("post_id", postID)).OrderBy("created_at", false))
		if err != nil {
			return nil, err
		}
		return r.toDomainAll(rows), nil
	})
}

// CommentsFromUser lists a user's comments newest first. It is not cached.
func (r *Repository) CommentsFromUser(ctx context.Context, userID string) ([]domain.Comment, error) {
	rows, err := backend.SelectInto[commentRow](ctx, r.db,
		commentQuery().Where(backend.Eq("user_id", userID)).OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	return r.toDomainAll(rows), nil
}

// SaveComment inserts a comment and appends it to the post's cached list,
// expired or not, instead of refetching. A post with no cached list is left
// uncached so the next read loads every comment.
func (r *Repository) SaveComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	content := strings.TrimSpace(c.Content)
	if content == "" {
		return domain.Comment{}, fmt.Errorf("comment content: %w", domain.ErrInvalidArgument)
	}
	raw, err := r.db.Insert(ctx, schema.Comments, backend.Row{
		"content": content,
		"post_id": c.PostID,
		"user_id": c.UserID,
	}, commentQuery())
	if err != nil {
		return domain.Comment{}, err
	}
	row, err := backend.Decode[commentRow](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return domain.Comment{}, fmt.Errorf("create comment: %w", domain.ErrNoData)
	}
	if err != nil {
		return domain.Comment{}, err
	}
	created := r.toDomain(row)
	r.appendCached(ctx, created)
	return created, nil
}

func (r *Repository) appendCached(ctx context.Context, created domain.Comment) {
	key := policy.CommentsByPost(created.PostID)
	existing, ok, err := cache.Get[[]domain.Comment](ctx, r.cache, key, cache.AllowExpired())
	if err != nil {
		r.logger.Warn().Err(err).Str("event", "comment_patch_failed").Int64("post_id", created.PostID).Msg("dropping cached comments")
		r.cache.Invalidate(ctx, key)
		return
	}
	if !ok {
		return
	}
	if slices.ContainsFunc(existing, func(c domain.Comment) bool { return c.ID == created.ID }) {
		return
	}
	cache.Remember(ctx, r.cache, key, append(existing, created), policy.TTLComments)
}

func (r *Repository) DeleteComment(ctx context.Context, postID, commentID int64) error {
	if err := r.db.Delete(ctx, backend.From(schema.Comments).Where(backend.Eq("id", commentID))); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, policy.CommentsByPost(postID))
	return nil
}
