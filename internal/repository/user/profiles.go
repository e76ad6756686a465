package user

import (
	"context"
	"strconv"
	"strings"
	"time"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/cache"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
	"socialcore/internal/repository/schema"
)

// User returns nil when no profile has id. Counts missing from the fresh row
// are taken from the previous cache entry, expired or not.
func (r *Repository) User(ctx context.Context, id string) (*domain.User, error) {
	return cache.First(ctx, r.cache, policy.User(id), policy.TTLProfiles, func(ctx context.Context) (*domain.User, error) {
		cached, err := r.staleUser(ctx, id)
		if err != nil {
			return nil, err
		}
		row, err := backend.MaybeSingleInto[profileRow](ctx, r.db, profileQuery().Where(backend.Eq("id", id)))
		if err != nil || row == nil {
			return nil, err
		}
		u := mergeFollowCounts(r.toDomain(*row), cached)
		return &u, nil
	})
}

// UsersBatch loads many profiles in one query and refreshes each cache
// entry. Unknown ids are absent from the result.
func (r *Repository) UsersBatch(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := backend.SelectInto[profileRow](ctx, r.db, profileQuery().Where(backend.In("id", ids)))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		u := r.remember(ctx, row)
		out[u.ID] = u
	}
	return out, nil
}

// CreateUser inserts a profile. Unset counts are stored as zero and the last
// seen time defaults to now.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	lastSeen := r.now().UTC()
	if u.LastSeenAt != nil {
		lastSeen = *u.LastSeenAt
	}
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	raw, err := r.db.Insert(ctx, schema.Profiles, backend.Row{
		"id":                    u.ID,
		"name":                  u.Name,
		"photo_url":             u.PhotoURL,
		"role":                  string(role),
		"online_visible":        u.OnlineVisible,
		"notifications_enabled": u.NotificationsEnabled,
		"last_seen_at":          lastSeen,
		"followers_count":       intOr(u.FollowersCount, 0),
		"following_count":       intOr(u.FollowingCount, 0),
		"bio":                   u.Bio,
		"location":              u.Location,
	}, profileQuery())
	if err != nil {
		return domain.User{}, err
	}
	row, err := backend.Decode[profileRow](raw)
	if err != nil {
		return domain.User{}, err
	}
	created := mergeFollowCounts(r.toDomain(row), nil)
	cache.Remember(ctx, r.cache, policy.User(created.ID), created, policy.TTLProfiles)
	return created, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	if err := r.db.Delete(ctx, backend.From(schema.Profiles).Where(backend.Eq("id", id))); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, policy.User(id))
	return nil
}

func (r *Repository) SetOnlineVisibility(ctx context.Context, id string, visible bool) error {
	_, err := r.updateProfile(ctx, id, backend.Row{"online_visible": visible})
	return err
}

func (r *Repository) SetNotificationsEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.updateProfile(ctx, id, backend.Row{"notifications_enabled": enabled})
	return err
}

func (r *Repository) UpdateLastSeenAt(ctx context.Context, id string, at time.Time) error {
	_, err := r.updateProfile(ctx, id, backend.Row{"last_seen_at": at.UTC()})
	return err
}

// UpdateProfilePhoto uploads a new avatar and points the profile at it. The
// new blob is removed when the profile update fails; the previous avatar is
// removed best-effort once the update succeeded.
func (r *Repository) UpdateProfilePhoto(ctx context.Context, id string, image domain.ImageUpload, previousPhotoURL *string) (domain.User, error) {
	var previous string
	if previousPhotoURL != nil {
		previous, _ = r.media.PathFromPublicURL(blob.BucketUserAvatars, *previousPhotoURL)
	}
	name := strconv.FormatInt(r.now().UnixMilli(), 10)
	stored, err := r.media.Upload(ctx, blob.BucketUserAvatars, media.ObjectPath(id, name, image.Extension), image)
	if err != nil {
		return domain.User{}, err
	}

	u, err := r.updateProfile(ctx, id, backend.Row{"photo_url": stored})
	if err != nil {
		media.Compensate(ctx, r.logger, "remove_avatar", func(ctx context.Context) error {
			return r.media.Remove(ctx, blob.BucketUserAvatars, stored)
		})
		return domain.User{}, err
	}

	if previous != "" && previous != stored {
		media.Compensate(ctx, r.logger, "remove_previous_avatar", func(ctx context.Context) error {
			return r.media.Remove(ctx, blob.BucketUserAvatars, previous)
		})
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of update. An empty bio or
// location clears it. With nothing to change the current profile is
// returned.
func (r *Repository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.User, error) {
	values := backend.Row{}
	if update.Name != nil {
		values["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Bio != nil {
		values["bio"] = emptyAsNull(*update.Bio)
	}
	if update.Location != nil {
		values["location"] = emptyAsNull(*update.Location)
	}
	if len(values) == 0 {
		u, err := r.User(ctx, id)
		if err != nil {
			return domain.User{}, err
		}
		if u == nil {
			return domain.User{}, notFound(id)
		}
		return *u, nil
	}
	return r.updateProfile(ctx, id, values)
}

// AcceptTerms records the accepted terms version with the current time.
func (r *Repository) AcceptTerms(ctx context.Context, id, version string) (domain.User, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return domain.User{}, domain.ErrInvalidArgument
	}
	return r.updateProfile(ctx, id, backend.Row{
		"terms_accepted_version": version,
		"terms_accepted_at":      r.now().UTC(),
	})
}

func emptyAsNull(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
