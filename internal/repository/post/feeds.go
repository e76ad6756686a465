package post

import (
	"context"

	"socialcore/internal/backend"
	"socialcore/internal/cache"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

// UserFeed lists posts from the communities userID subscribes to together
// with userID's own posts, newest first.
func (r *Repository) UserFeed(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return cache.First(ctx, r.cache, policy.FeedByUser(userID, page), policy.TTLFeed, func(ctx context.Context) ([]domain.Post, error) {
		type subscriptionRow struct {
			CommunityID int64 `json:"community_id"`
		}
		subs, err := backend.SelectInto[subscriptionRow](ctx, r.db, backend.From(schema.Subscriptions).
			Select("community_id").
			Where(backend.Eq("user_id", userID)))
		if err != nil {
			return nil, err
		}

		filter := backend.Eq("user_id", userID)
		if len(subs) > 0 {
			ids := make([]int64, 0, len(subs))
			for _, s := range subs {
				ids = append(ids, s.CommunityID)
			}
			filter = backend.Or(backend.In("community_id", ids), backend.Eq("user_id", userID))
		}
		return r.viewerPage(ctx, userID, page, func(q backend.Query) backend.Query {
			return q.Where(filter)
		})
	})
}

// FollowingFeed lists posts written by the users userID follows.
func (r *Repository) FollowingFeed(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return cache.First(ctx, r.cache, policy.FeedByFollowing(userID, page), policy.TTLFeed, func(ctx context.Context) ([]domain.Post, error) {
		type followRow struct {
			FollowingID string `json:"following_id"`
		}
		follows, err := backend.SelectInto[followRow](ctx, r.db, backend.From(schema.UserFollows).
			Select("following_id").
			Where(backend.Eq("follower_id", userID)))
		if err != nil {
			return nil, err
		}
		if len(follows) == 0 {
			return []domain.Post{}, nil
		}
		ids := make([]string, 0, len(follows))
		for _, f := range follows {
			ids = append(ids, f.FollowingID)
		}
		return r.viewerPage(ctx, userID, page, func(q backend.Query) backend.Query {
			return q.Where(backend.In("user_id", ids))
		})
	})
}

// PublicFeed lists every post. It carries no viewer flags.
func (r *Repository) PublicFeed(ctx context.Context, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return cache.First(ctx, r.cache, policy.PublicFeed(page), policy.TTLFeed, func(ctx context.Context) ([]domain.Post, error) {
		return r.anonymousPage(ctx, page, func(q backend.Query) backend.Query { return q })
	})
}

func (r *Repository) CommunityPosts(ctx context.Context, communityID int64, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return cache.First(ctx, r.cache, policy.PostsByCommunity(communityID, page), policy.TTLFeed, func(ctx context.Context) ([]domain.Post, error) {
		return r.anonymousPage(ctx, page, func(q backend.Query) backend.Query {
			return q.Where(backend.Eq("community_id", communityID))
		})
	})
}

// UserPosts lists posts written by userID, flagged from userID's view.
func (r *Repository) UserPosts(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return cache.First(ctx, r.cache, policy.PostsByUser(userID, page), policy.TTLFeed, func(ctx context.Context) ([]domain.Post, error) {
		return r.viewerPage(ctx, userID, page, func(q backend.Query) backend.Query {
			return q.Where(backend.Eq("user_id", userID))
		})
	})
}

// SavedPosts lists the posts userID bookmarked, most recently saved first.
func (r *Repository) SavedPosts(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	page = page.Normalize()
	return cache.First(ctx, r.cache, policy.SavedPostsByUser(userID, page), policy.TTLSavedPosts, func(ctx context.Context) ([]domain.Post, error) {
		saved, err := backend.SelectInto[schema.PostID](ctx, r.db, backend.From(schema.SavedPosts).
			Select("post_id").
			Where(backend.Eq("user_id", userID)).
			OrderBy("created_at", true).
			Range(page.Range()))
		if err != nil {
			return nil, err
		}
		order := schema.PostIDs(saved)
		if len(order) == 0 {
			return []domain.Post{}, nil
		}

		rows, err := r.selectPosts(ctx, func(q backend.Query) backend.Query {
			return q.Where(backend.In("id", order))
		})
		if err != nil {
			return nil, err
		}
		flags, err := r.viewerFlags(ctx, userID, order, false)
		if err != nil {
			return nil, err
		}
		flags.allSaved = true

		byID := make(map[int64]domain.Post, len(rows))
		for _, p := range r.toDomainAll(ctx, rows, &flags) {
			byID[p.ID] = p
		}
		// the join table defines the order; ids whose post is gone are skipped
		out := make([]domain.Post, 0, len(order))
		for _, id := range order {
			if p, ok := byID[id]; ok {
				out = append(out, p)
			}
		}
		return out, nil
	})
}

// PendingPosts lists posts awaiting moderation in a community. It is not
// cached.
func (r *Repository) PendingPosts(ctx context.Context, communityID int64) ([]domain.Post, error) {
	rows, err := r.selectPosts(ctx, func(q backend.Query) backend.Query {
		return q.Where(
			backend.Eq("community_id", communityID),
			backend.Eq("moderation_status", string(domain.ModerationPending)),
		).OrderBy("created_at", true)
	})
	if err != nil {
		return nil, err
	}
	return r.toDomainAll(ctx, rows, nil), nil
}

func (r *Repository) viewerPage(ctx context.Context, userID string, page domain.Page, shape func(backend.Query) backend.Query) ([]domain.Post, error) {
	rows, err := r.selectPosts(ctx, pageShape(page, shape))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Post{}, nil
	}
	flags, err := r.viewerFlags(ctx, userID, rowIDs(rows), true)
	if err != nil {
		return nil, err
	}
	return r.toDomainAll(ctx, rows, &flags), nil
}

func (r *Repository) anonymousPage(ctx context.Context, page domain.Page, shape func(backend.Query) backend.Query) ([]domain.Post, error) {
	rows, err := r.selectPosts(ctx, pageShape(page, shape))
	if err != nil {
		return nil, err
	}
	return r.toDomainAll(ctx, rows, nil), nil
}

func pageShape(page domain.Page, shape func(backend.Query) backend.Query) func(backend.Query) backend.Query {
	return func(q backend.Query) backend.Query {
		return shape(q).OrderBy("created_at", true).Range(page.Range())
	}
}
