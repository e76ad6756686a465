package user

import (
	"context"

	"socialcore/internal/backend"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type followRow struct {
	ID          int64  `json:"id"`
	FollowingID string `json:"following_id"`
}

// FollowUser records the follow, patches both cached profiles and drops the
// follower's first following-feed page.
func (r *Repository) FollowUser(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return domain.ErrInvalidArgument
	}
	if _, err := r.db.Insert(ctx, schema.UserFollows,
		backend.Row{"follower_id": followerID, "following_id": followingID},
		backend.From(schema.UserFollows).Select("id")); err != nil {
		return err
	}
	r.afterFollowChange(ctx, followerID, followingID, 1)
	return nil
}

func (r *Repository) UnfollowUser(ctx context.Context, followerID, followingID string) error {
	if err := r.db.Delete(ctx, followQuery(followerID, followingID)); err != nil {
		return err
	}
	r.afterFollowChange(ctx, followerID, followingID, -1)
	return nil
}

func (r *Repository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	row, err := backend.MaybeSingleInto[followRow](ctx, r.db, followQuery(followerID, followingID).Select("id"))
	if err != nil {
		return false, err
	}
	return row != nil && row.ID != 0, nil
}

// FollowersCount reads the profile's stored count and counts the follow
// rows when the column is empty.
func (r *Repository) FollowersCount(ctx context.Context, userID string) (int, error) {
	return r.followCount(ctx, userID, "followers_count", "following_id")
}

func (r *Repository) FollowingCount(ctx context.Context, userID string) (int, error) {
	return r.followCount(ctx, userID, "following_count", "follower_id")
}

func (r *Repository) followCount(ctx context.Context, userID, column, edge string) (int, error) {
	row, err := backend.MaybeSingleInto[map[string]*int](ctx, r.db,
		backend.From(schema.Profiles).Select(column).Where(backend.Eq("id", userID)))
	if err != nil {
		return 0, err
	}
	if row != nil {
		if n := (*row)[column]; n != nil {
			return *n, nil
		}
	}
	return r.db.Count(ctx, backend.From(schema.UserFollows).Where(backend.Eq(edge, userID)))
}

// afterFollowChange runs once the follow row is committed. When the cached
// counts cannot be patched both profiles are dropped so the next read
// refetches them.
func (r *Repository) afterFollowChange(ctx context.Context, followerID, followingID string, delta int) {
	keys := []string{policy.FeedByFollowing(followerID, domain.FirstPage)}
	if err := r.bumpCachedFollowCounts(ctx, followerID, followingID, delta); err != nil {
		r.logger.Warn().Err(err).Str("event", "follow_count_patch_failed").
			Str("follower_id", followerID).Str("following_id", followingID).Msg("dropping cached profiles")
		keys = append(keys, policy.User(followerID), policy.User(followingID))
	}
	r.cache.Invalidate(ctx, keys...)
}

func followQuery(followerID, followingID string) backend.Query {
	return backend.From(schema.UserFollows).
		Where(backend.Eq("follower_id", followerID), backend.Eq("following_id", followingID))
}
