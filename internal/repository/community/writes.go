package community

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/cache"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/schema"
)

func newUUID() string {
	return uuid.NewString()
}

// SaveCommunity creates a community and attaches its image. A failed upload
// deletes the community, except when the image bucket does not exist: then
// the community is kept without an image. A failed attach removes the blob
// and deletes the community.
func (r *Repository) SaveCommunity(ctx context.Context, c domain.Community, image *domain.ImageUpload) (domain.Community, error) {
	values := backend.Row{
		"title":           c.Title,
		"description":     c.Description,
		"owner_id":        c.OwnerID,
		"topic_id":        c.TopicID,
		"post_permission": string(domain.ParsePostPermission(string(c.PostPermission))),
		"image_url":       nil,
	}
	if image == nil && c.ImageURL != nil {
		values["image_url"] = *c.ImageURL
	}
	raw, err := r.db.Insert(ctx, schema.Communities, values, communityQuery(false))
	if err != nil {
		return domain.Community{}, err
	}
	created, err := decodeWritten(raw, "create community")
	if err != nil {
		return domain.Community{}, err
	}

	if image != nil {
		created, err = r.attachNewImage(ctx, created, *image)
		if err != nil {
			return domain.Community{}, err
		}
	}

	out := r.toDomain(ctx, created)
	zero := 0
	out.SubscribersCount = &zero
	cache.Remember(ctx, r.cache, policy.Community(out.ID), out, policy.TTLCommunities)
	r.cache.Invalidate(ctx, policy.CommunitiesByOwner(out.OwnerID))
	return out, nil
}

func (r *Repository) attachNewImage(ctx context.Context, created communityRow, image domain.ImageUpload) (communityRow, error) {
	deleteCommunity := func(ctx context.Context) error {
		return r.db.Delete(ctx, backend.From(schema.Communities).Where(backend.Eq("id", created.ID)))
	}
	path := media.ObjectPath(created.OwnerID, strconv.FormatInt(created.ID, 10), image.Extension)
	stored, err := r.media.Upload(ctx, blob.BucketCommunityImages, path, image)
	if errors.Is(err, blob.ErrBucketNotFound) {
		r.logger.Warn().Err(err).Int64("community_id", created.ID).Msg("community image bucket missing, saving without image")
		return created, nil
	}
	if err != nil {
		media.Compensate(ctx, r.logger, "delete_community", deleteCommunity)
		return communityRow{}, err
	}

	raw, err := r.db.Update(ctx,
		communityQuery(false).Where(backend.Eq("id", created.ID)),
		backend.Row{"image_url": stored})
	if err == nil {
		var updated communityRow
		if updated, err = decodeWritten(raw, "attach community image"); err == nil {
			return updated, nil
		}
	}
	media.Compensate(ctx, r.logger, "remove_community_image", func(ctx context.Context) error {
		return r.media.Remove(ctx, blob.BucketCommunityImages, stored)
	})
	media.Compensate(ctx, r.logger, "delete_community", deleteCommunity)
	return communityRow{}, err
}

// UpdateCommunity changes a community's details. A new image is uploaded
// under a fresh name before the record changes; if the record update fails
// the new blob is removed and the community keeps its previous image. The
// replaced blob is removed best-effort afterwards.
func (r *Repository) UpdateCommunity(ctx context.Context, c domain.Community, image *domain.ImageUpload) (domain.Community, error) {
	current, err := backend.MaybeSingleInto[communityRow](ctx, r.db,
		backend.From(schema.Communities).Select("id", "owner_id", "image_url").Where(backend.Eq("id", c.ID)))
	if err != nil {
		return domain.Community{}, err
	}
	if current == nil {
		return domain.Community{}, fmt.Errorf("community %d: %w", c.ID, domain.ErrNotFound)
	}

	values := backend.Row{
		"title":           c.Title,
		"description":     c.Description,
		"topic_id":        c.TopicID,
		"post_permission": string(domain.ParsePostPermission(string(c.PostPermission))),
	}
	var stored string
	if image != nil {
		name := fmt.Sprintf("%d-%s", c.ID, r.newVersion())
		stored, err = r.media.Upload(ctx, blob.BucketCommunityImages, media.ObjectPath(current.OwnerID, name, image.Extension), *image)
		if err != nil {
			return domain.Community{}, err
		}
		values["image_url"] = stored
	}

	raw, err := r.db.Update(ctx, communityQuery(false).Where(backend.Eq("id", c.ID)), values)
	var updated communityRow
	if err == nil {
		updated, err = decodeWritten(raw, "update community")
	}
	if err != nil {
		if stored != "" {
			media.Compensate(ctx, r.logger, "remove_community_image", func(ctx context.Context) error {
				return r.media.Remove(ctx, blob.BucketCommunityImages, stored)
			})
		}
		return domain.Community{}, err
	}

	if stored != "" && current.ImageURL != nil && *current.ImageURL != stored && !media.IsRemote(*current.ImageURL) {
		previous := *current.ImageURL
		media.Compensate(ctx, r.logger, "remove_previous_community_image", func(ctx context.Context) error {
			return r.media.Remove(ctx, blob.BucketCommunityImages, previous)
		})
	}

	r.cache.Invalidate(ctx, policy.Community(c.ID), policy.CommunitiesByOwner(updated.OwnerID))
	return r.toDomain(ctx, updated), nil
}

func (r *Repository) Subscribe(ctx context.Context, s domain.Subscription) (domain.Subscription, error) {
	raw, err := r.db.Insert(ctx, schema.Subscriptions,
		backend.Row{"user_id": s.UserID, "community_id": s.CommunityID},
		backend.From(schema.Subscriptions).Select("*"))
	if err != nil {
		return domain.Subscription{}, err
	}
	row, err := backend.Decode[subscriptionRow](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return domain.Subscription{}, fmt.Errorf("subscribe: %w", domain.ErrNoData)
	}
	if err != nil {
		return domain.Subscription{}, err
	}
	r.clearMembership(ctx, s.UserID, s.CommunityID)
	return row.toDomain(), nil
}

func (r *Repository) Unsubscribe(ctx context.Context, s domain.Subscription) error {
	if err := r.db.Delete(ctx, subscriptionQuery(s.UserID, s.CommunityID)); err != nil {
		return err
	}
	r.clearMembership(ctx, s.UserID, s.CommunityID)
	return nil
}

func (r *Repository) DeleteCommunity(ctx context.Context, id int64) error {
	if err := r.db.Delete(ctx, backend.From(schema.Communities).Where(backend.Eq("id", id))); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, policy.Community(id))
	return nil
}

// clearMembership drops the lists a subscription change affects: the user's
// subscribed list, the community's subscriber count and the first page of
// the user's feed.
func (r *Repository) clearMembership(ctx context.Context, userID string, communityID int64) {
	r.cache.Invalidate(ctx,
		policy.CommunitiesBySubscriber(userID),
		policy.Community(communityID),
		policy.FeedByUser(userID, domain.FirstPage),
	)
}

func decodeWritten(raw []byte, op string) (communityRow, error) {
	row, err := backend.Decode[communityRow](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return communityRow{}, fmt.Errorf("%s: %w", op, domain.ErrNoData)
	}
	return row, err
}
