// Package community implements domain.CommunityRepository.
package community

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/cache"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/schema"
)

const resolveConcurrency = 8

type Repository struct {
	db     backend.Client
	cache  *cache.Store
	media  *media.Resolver
	logger zerolog.Logger
	// newVersion names replacement images so clients never see a stale blob
	// under an old URL.
	newVersion func() string
}

var _ domain.CommunityRepository = (*Repository)(nil)

type Option func(*Repository)

// WithVersioner replaces the generator of replacement image names.
func WithVersioner(fn func() string) Option {
	return func(r *Repository) { r.newVersion = fn }
}

func New(db backend.Client, store *cache.Store, resolver *media.Resolver, logger zerolog.Logger, opts ...Option) *Repository {
	r := &Repository{
		db:         db,
		cache:      store,
		media:      resolver,
		logger:     logger.With().Str("component", "repository.community").Logger(),
		newVersion: newUUID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type communityRow struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Description    *string      `json:"description"`
	ImageURL       *string      `json:"image_url"`
	OwnerID        string       `json:"owner_id"`
	TopicID        *int64       `json:"topic_id"`
	CreatedAt      *time.Time   `json:"created_at"`
	PostPermission *string      `json:"post_permission"`
	Subscriptions  schema.Count `json:"subscriptions"`
	// counted is set when the subscriptions aggregate was requested.
	counted bool
}

type subscriptionRow struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	CommunityID int64  `json:"community_id"`
}

func (s subscriptionRow) toDomain() domain.Subscription {
	return domain.Subscription{ID: s.ID, UserID: s.UserID, CommunityID: s.CommunityID}
}

func communityQuery(withCounts bool) backend.Query {
	q := backend.From(schema.Communities).Select("*")
	if withCounts {
		q = q.EmbedCount("subscriptions")
	}
	return q
}

// selectCommunities asks for subscriber counts and falls back to the bare
// projection when the backend cannot embed them.
func (r *Repository) selectCommunities(ctx context.Context, shape func(backend.Query) backend.Query) ([]communityRow, error) {
	rows, err := backend.SelectInto[communityRow](ctx, r.db, shape(communityQuery(true)))
	if backend.HasCode(err, backend.CodeUnsupportedRelationship) {
		r.logger.Debug().Err(err).Msg("subscriber counts unsupported, retrying without counts")
		return backend.SelectInto[communityRow](ctx, r.db, shape(communityQuery(false)))
	}
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].counted = true
	}
	return rows, nil
}

func (r *Repository) toDomain(ctx context.Context, row communityRow) domain.Community {
	c := domain.Community{
		ID:             row.ID,
		Title:          row.Title,
		ImageURL:       r.media.Signed(ctx, blob.BucketCommunityImages, row.ImageURL),
		OwnerID:        row.OwnerID,
		TopicID:        row.TopicID,
		CreatedAt:      row.CreatedAt,
		PostPermission: domain.ParsePostPermission(deref(row.PostPermission)),
	}
	if row.Description != nil {
		c.Description = *row.Description
	}
	if row.counted {
		n := row.Subscriptions.Value()
		c.SubscribersCount = &n
	}
	return c
}

func (r *Repository) toDomainAll(ctx context.Context, rows []communityRow) []domain.Community {
	out := make([]domain.Community, len(rows))
	var g errgroup.Group
	g.SetLimit(resolveConcurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			out[i] = r.toDomain(ctx, row)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// sortByFollowers orders communities by subscriber count. Ties keep the
// incoming order, which is newest first.
func sortByFollowers(list []domain.Community, desc bool) {
	count := func(c domain.Community) int {
		if c.SubscribersCount == nil {
			return 0
		}
		return *c.SubscribersCount
	}
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return count(list[i]) > count(list[j])
		}
		return count(list[i]) < count(list[j])
	})
}

// likePattern builds a substring match, escaping LIKE metacharacters.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
