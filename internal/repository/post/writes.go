package post

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/schema"
)

func (r *Repository) SavedPostsCount(ctx context.Context, userID string) (int, error) {
	return r.db.Count(ctx, backend.From(schema.SavedPosts).Where(backend.Eq("user_id", userID)))
}

func (r *Repository) PostLikes(ctx context.Context, postID int64) (int, error) {
	return r.db.Count(ctx, backend.From(schema.Likes).Where(backend.Eq("post_id", postID)))
}

func (r *Repository) IsLiked(ctx context.Context, postID int64, userID string) (bool, error) {
	return r.exists(ctx, schema.Likes, postID, userID)
}

func (r *Repository) IsSaved(ctx context.Context, postID int64, userID string) (bool, error) {
	return r.exists(ctx, schema.SavedPosts, postID, userID)
}

// LikePost is idempotent: liking twice keeps a single like.
func (r *Repository) LikePost(ctx context.Context, postID int64, userID string) error {
	_, err := r.db.Upsert(ctx, schema.Likes,
		backend.Row{"post_id": postID, "user_id": userID},
		backend.UpsertOptions{OnConflict: []string{"post_id", "user_id"}, IgnoreDuplicates: true},
		backend.From(schema.Likes).Select("id"))
	return err
}

func (r *Repository) UnlikePost(ctx context.Context, postID int64, userID string) error {
	return r.db.Delete(ctx, membership(schema.Likes, postID, userID))
}

func (r *Repository) BookmarkPost(ctx context.Context, postID int64, userID string) error {
	if _, err := r.db.Insert(ctx, schema.SavedPosts,
		backend.Row{"post_id": postID, "user_id": userID},
		backend.From(schema.SavedPosts).Select("id")); err != nil {
		return err
	}
	r.clearViewerLists(ctx, userID)
	return nil
}

func (r *Repository) UnbookmarkPost(ctx context.Context, postID int64, userID string) error {
	if err := r.db.Delete(ctx, membership(schema.SavedPosts, postID, userID)); err != nil {
		return err
	}
	r.clearViewerLists(ctx, userID)
	return nil
}

// SavePost creates a post. With an image, the post is inserted first so its
// id can name the blob, then the blob is uploaded and attached. A failed
// upload deletes the post; a failed attach removes the blob and deletes the
// post. Either way the original error is returned.
func (r *Repository) SavePost(ctx context.Context, p domain.Post, image *domain.ImageUpload) (domain.Post, error) {
	values := backend.Row{
		"content":      p.Content,
		"community_id": p.CommunityID,
		"user_id":      p.UserID,
		"image_url":    nil,
	}
	if image == nil && p.ImageURL != nil {
		values["image_url"] = *p.ImageURL
	}
	if p.ModerationStatus != "" && p.ModerationStatus.Valid() {
		values["moderation_status"] = string(p.ModerationStatus)
	}

	created, err := withCountsFallback(ctx, r.logger, func(ctx context.Context, projection backend.Query) (postRow, error) {
		raw, err := r.db.Insert(ctx, schema.Posts, values, projection)
		if err != nil {
			return postRow{}, err
		}
		return decodeWritten(raw, "create post")
	})
	if err != nil {
		return domain.Post{}, err
	}
	if image == nil {
		r.clearAuthorLists(ctx, p.UserID, p.CommunityID)
		return r.toDomain(ctx, created), nil
	}

	deletePost := func(ctx context.Context) error {
		return r.db.Delete(ctx, backend.From(schema.Posts).Where(backend.Eq("id", created.ID)))
	}
	path := media.ObjectPath(p.UserID, strconv.FormatInt(created.ID, 10), image.Extension)
	stored, err := r.media.Upload(ctx, blob.BucketPostImages, path, *image)
	if err != nil {
		media.Compensate(ctx, r.logger, "delete_post", deletePost)
		return domain.Post{}, err
	}

	updated, err := withCountsFallback(ctx, r.logger, func(ctx context.Context, projection backend.Query) (postRow, error) {
		raw, err := r.db.Update(ctx, projection.Where(backend.Eq("id", created.ID)), backend.Row{"image_url": stored})
		if err != nil {
			return postRow{}, err
		}
		return decodeWritten(raw, "attach post image")
	})
	if err != nil {
		media.Compensate(ctx, r.logger, "remove_post_image", func(ctx context.Context) error {
			return r.media.Remove(ctx, blob.BucketPostImages, stored)
		})
		media.Compensate(ctx, r.logger, "delete_post", deletePost)
		return domain.Post{}, err
	}

	r.clearAuthorLists(ctx, p.UserID, p.CommunityID)
	return r.toDomain(ctx, updated), nil
}

func (r *Repository) UpdateModerationStatus(ctx context.Context, postID int64, status domain.ModerationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: moderation status %q", domain.ErrInvalidArgument, status)
	}
	return r.setModerationStatus(ctx, postID, status)
}

func (r *Repository) MarkPostForReview(ctx context.Context, postID int64) error {
	return r.setModerationStatus(ctx, postID, domain.ModerationPending)
}

func (r *Repository) DeletePost(ctx context.Context, postID int64) error {
	return r.db.Delete(ctx, backend.From(schema.Posts).Where(backend.Eq("id", postID)))
}

func (r *Repository) setModerationStatus(ctx context.Context, postID int64, status domain.ModerationStatus) error {
	_, err := r.db.Update(ctx,
		backend.From(schema.Posts).Select("id").Where(backend.Eq("id", postID)),
		backend.Row{"moderation_status": string(status)})
	if err != nil {
		return err
	}
	r.cache.Invalidate(ctx, policy.PublicFeed(domain.FirstPage))
	return nil
}

func (r *Repository) exists(ctx context.Context, table string, postID int64, userID string) (bool, error) {
	raw, err := r.db.MaybeSingle(ctx, membership(table, postID, userID).Select("id"))
	if err != nil {
		return false, err
	}
	return len(raw) > 0 && string(raw) != "null", nil
}

// clearViewerLists drops the first page of every list carrying userID's
// saved flags.
func (r *Repository) clearViewerLists(ctx context.Context, userID string) {
	r.cache.Invalidate(ctx,
		policy.SavedPostsByUser(userID, domain.FirstPage),
		policy.FeedByUser(userID, domain.FirstPage),
		policy.PostsByUser(userID, domain.FirstPage),
	)
}

// clearAuthorLists drops the first page of every list a new post appears in.
func (r *Repository) clearAuthorLists(ctx context.Context, userID string, communityID int64) {
	r.clearViewerLists(ctx, userID)
	r.cache.Invalidate(ctx,
		policy.PostsByCommunity(communityID, domain.FirstPage),
		policy.PublicFeed(domain.FirstPage),
	)
}

func membership(table string, postID int64, userID string) backend.Query {
	return backend.From(table).Where(backend.Eq("post_id", postID), backend.Eq("user_id", userID))
}

func decodeWritten(raw []byte, op string) (postRow, error) {
	row, err := backend.Decode[postRow](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return postRow{}, fmt.Errorf("%s: %w", op, domain.ErrNoData)
	}
	return row, err
}
