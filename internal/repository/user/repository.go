// Package user implements domain.UserRepository: profiles, the follow graph
// and notifications.
package user

import (
	"context"
	"errors"
	"fmt"
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
	now    func() time.Time
}

var _ domain.UserRepository = (*Repository)(nil)

type Option func(*Repository)

// WithClock replaces the time source used for read receipts, terms
// acceptance and avatar names.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(db backend.Client, store *cache.Store, resolver *media.Resolver, logger zerolog.Logger, opts ...Option) *Repository {
	r := &Repository{
		db:     db,
		cache:  store,
		media:  resolver,
		logger: logger.With().Str("component", "repository.user").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type profileRow struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	PhotoURL             *string    `json:"photo_url"`
	Role                 *string    `json:"role"`
	CreatedAt            *time.Time `json:"created_at"`
	OnlineVisible        *bool      `json:"online_visible"`
	NotificationsEnabled *bool      `json:"notifications_enabled"`
	LastSeenAt           *time.Time `json:"last_seen_at"`
	FollowersCount       *int       `json:"followers_count"`
	FollowingCount       *int       `json:"following_count"`
	Bio                  *string    `json:"bio"`
	Location             *string    `json:"location"`
	TermsAcceptedVersion *string    `json:"terms_accepted_version"`
	TermsAcceptedAt      *time.Time `json:"terms_accepted_at"`
}

// toDomain leaves the counts nil when the row has none; visibility and
// notification flags default to on.
func (r *Repository) toDomain(row profileRow) domain.User {
	return domain.User{
		ID:                   row.ID,
		Name:                 row.Name,
		PhotoURL:             r.media.Public(blob.BucketUserAvatars, row.PhotoURL),
		Role:                 parseRole(row.Role),
		CreatedAt:            row.CreatedAt,
		OnlineVisible:        boolOr(row.OnlineVisible, true),
		NotificationsEnabled: boolOr(row.NotificationsEnabled, true),
		LastSeenAt:           row.LastSeenAt,
		FollowersCount:       row.FollowersCount,
		FollowingCount:       row.FollowingCount,
		Bio:                  row.Bio,
		Location:             row.Location,
		TermsAcceptedVersion: row.TermsAcceptedVersion,
		TermsAcceptedAt:      row.TermsAcceptedAt,
	}
}

// mergeFollowCounts fills counts missing from base with the last known
// cached values, and with zero when neither knows them.
func mergeFollowCounts(base domain.User, cached *domain.User) domain.User {
	pick := func(fresh *int, stale func(domain.User) *int) *int {
		if fresh != nil {
			return fresh
		}
		if cached != nil {
			if v := stale(*cached); v != nil {
				n := *v
				return &n
			}
		}
		zero := 0
		return &zero
	}
	base.FollowersCount = pick(base.FollowersCount, func(u domain.User) *int { return u.FollowersCount })
	base.FollowingCount = pick(base.FollowingCount, func(u domain.User) *int { return u.FollowingCount })
	return base
}

// staleUser reads the cached profile even past its TTL.
func (r *Repository) staleUser(ctx context.Context, id string) (*domain.User, error) {
	u, ok, err := cache.Get[domain.User](ctx, r.cache, policy.User(id), cache.AllowExpired())
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// remember merges counts from the stale cache entry into row and caches the
// result under the user key. Cache failures only lose the carried counts.
func (r *Repository) remember(ctx context.Context, row profileRow) domain.User {
	cached, err := r.staleUser(ctx, row.ID)
	if err != nil {
		r.logger.Warn().Err(err).Str("event", "stale_read_failed").Str("user_id", row.ID).Msg("cached counts unavailable")
	}
	u := mergeFollowCounts(r.toDomain(row), cached)
	cache.Remember(ctx, r.cache, policy.User(u.ID), u, policy.TTLProfiles)
	return u
}

// bumpCachedFollowCounts patches the cached counts of both parties by delta
// without a refetch. Counts never go below zero; users not in cache are left
// alone.
func (r *Repository) bumpCachedFollowCounts(ctx context.Context, followerID, followingID string, delta int) error {
	patch := func(id string, field func(*domain.User) **int) error {
		u, err := r.staleUser(ctx, id)
		if err != nil || u == nil {
			return err
		}
		counter := field(u)
		n := delta
		if *counter != nil {
			n += **counter
		}
		n = max(n, 0)
		*counter = &n
		return cache.Set(ctx, r.cache, policy.User(id), *u, policy.TTLProfiles)
	}
	if err := patch(followerID, func(u *domain.User) **int { return &u.FollowingCount }); err != nil {
		return err
	}
	return patch(followingID, func(u *domain.User) **int { return &u.FollowersCount })
}

func (r *Repository) updateProfile(ctx context.Context, id string, values backend.Row) (domain.User, error) {
	raw, err := r.db.Update(ctx, profileQuery().Where(backend.Eq("id", id)), values)
	if err != nil {
		return domain.User{}, err
	}
	row, err := backend.Decode[profileRow](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return domain.User{}, notFound(id)
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.remember(ctx, row), nil
}

func notFound(id string) error {
	return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func profileQuery() backend.Query {
	return backend.From(schema.Profiles).Select("*")
}

func parseRole(raw *string) domain.Role {
	if raw == nil {
		return domain.RoleUser
	}
	switch domain.Role(*raw) {
	case domain.RoleModerator:
		return domain.RoleModerator
	case domain.RoleAdmin:
		return domain.RoleAdmin
	default:
		return domain.RoleUser
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
