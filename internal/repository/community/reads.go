package community

import (
	"context"

	"socialcore/internal/backend"
	"socialcore/internal/cache"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

// Communities lists the directory filtered by title search and topic.
func (r *Repository) Communities(ctx context.Context, q domain.CommunityQuery) ([]domain.Community, error) {
	q = q.Normalize()
	return cache.First(ctx, r.cache, policy.Communities(q), policy.TTLCommunities, func(ctx context.Context) ([]domain.Community, error) {
		rows, err := r.selectCommunities(ctx, func(b backend.Query) backend.Query {
			if q.Search != "" {
				b = b.Where(backend.ILike("title", likePattern(q.Search)))
			}
			if q.TopicID != nil {
				b = b.Where(backend.Eq("topic_id", *q.TopicID))
			}
			return b.OrderBy("created_at", q.Sort != domain.SortOldest)
		})
		if err != nil {
			return nil, err
		}
		list := r.toDomainAll(ctx, rows)
		switch q.Sort {
		case domain.SortMostFollowed:
			sortByFollowers(list, true)
		case domain.SortLeastFollowed:
			sortByFollowers(list, false)
		}
		return list, nil
	})
}

// Community returns nil when no community has id. Misses are not cached.
func (r *Repository) Community(ctx context.Context, id int64) (*domain.Community, error) {
	return cache.First(ctx, r.cache, policy.Community(id), policy.TTLCommunities, func(ctx context.Context) (*domain.Community, error) {
		rows, err := r.selectCommunities(ctx, func(b backend.Query) backend.Query {
			return b.Where(backend.Eq("id", id)).WithLimit(1)
		})
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		c := r.toDomain(ctx, rows[0])
		return &c, nil
	})
}

func (r *Repository) CommunitiesByOwner(ctx context.Context, userID string) ([]domain.Community, error) {
	return cache.First(ctx, r.cache, policy.CommunitiesByOwner(userID), policy.TTLCommunities, func(ctx context.Context) ([]domain.Community, error) {
		rows, err := r.selectCommunities(ctx, func(b backend.Query) backend.Query {
			return b.Where(backend.Eq("owner_id", userID)).OrderBy("created_at", true)
		})
		if err != nil {
			return nil, err
		}
		return r.toDomainAll(ctx, rows), nil
	})
}

func (r *Repository) SubscribedCommunities(ctx context.Context, userID string) ([]domain.Community, error) {
	return cache.First(ctx, r.cache, policy.CommunitiesBySubscriber(userID), policy.TTLCommunities, func(ctx context.Context) ([]domain.Community, error) {
		subs, err := backend.SelectInto[subscriptionRow](ctx, r.db, backend.From(schema.Subscriptions).
			Select("community_id").
			Where(backend.Eq("user_id", userID)))
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return []domain.Community{}, nil
		}
		ids := make([]int64, 0, len(subs))
		for _, s := range subs {
			ids = append(ids, s.CommunityID)
		}
		rows, err := r.selectCommunities(ctx, func(b backend.Query) backend.Query {
			return b.Where(backend.In("id", ids))
		})
		if err != nil {
			return nil, err
		}
		return r.toDomainAll(ctx, rows), nil
	})
}

func (r *Repository) SubscribersCount(ctx context.Context, communityID int64) (int, error) {
	return r.db.Count(ctx, backend.From(schema.Subscriptions).Where(backend.Eq("community_id", communityID)))
}

func (r *Repository) Subscription(ctx context.Context, userID string, communityID int64) (*domain.Subscription, error) {
	row, err := backend.MaybeSingleInto[subscriptionRow](ctx, r.db, subscriptionQuery(userID, communityID))
	if err != nil || row == nil {
		return nil, err
	}
	s := row.toDomain()
	return &s, nil
}

func subscriptionQuery(userID string, communityID int64) backend.Query {
	return backend.From(schema.Subscriptions).
		Select("*").
		Where(backend.Eq("user_id", userID), backend.Eq("community_id", communityID))
}
