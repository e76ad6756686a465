package moderation

import (
	"context"
	"fmt"
	"time"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type moderatorRow struct {
	ID          int64                  `json:"id"`
	CommunityID int64                  `json:"community_id"`
	UserID      string                 `json:"user_id"`
	AssignedBy  string                 `json:"assigned_by"`
	CreatedAt   *time.Time             `json:"created_at"`
	Profiles    schema.One[profileRef] `json:"profiles"`
}

func (r *Repository) moderatorToDomain(row moderatorRow) domain.CommunityModerator {
	m := domain.CommunityModerator{
		ID:          row.ID,
		CommunityID: row.CommunityID,
		UserID:      row.UserID,
		AssignedBy:  row.AssignedBy,
		CreatedAt:   row.CreatedAt,
	}
	if u := row.Profiles.Value; u != nil {
		m.UserName = u.Name
		m.UserPhotoURL = r.media.Public(blob.BucketUserAvatars, u.PhotoURL)
	}
	return m
}

func moderatorQuery() backend.Query {
	return backend.From(schema.CommunityModerators).Select("*").Embed("profiles", "name", "photo_url")
}

// Moderators lists assigned moderators in assignment order.
func (r *Repository) Moderators(ctx context.Context, communityID int64) ([]domain.CommunityModerator, error) {
	rows, err := backend.SelectInto[moderatorRow](ctx, r.db, moderatorQuery().
		Where(backend.Eq("community_id", communityID)).
		OrderBy("created_at", false))
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommunityModerator, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.moderatorToDomain(row))
	}
	return out, nil
}

func (r *Repository) AddModerator(ctx context.Context, communityID int64, userID, assignedBy string) (domain.CommunityModerator, error) {
	row, err := insert[moderatorRow](ctx, r.db, schema.CommunityModerators, backend.Row{
		"community_id": communityID,
		"user_id":      userID,
		"assigned_by":  assignedBy,
	}, moderatorQuery())
	if err != nil {
		return domain.CommunityModerator{}, err
	}
	return r.moderatorToDomain(row), nil
}

func (r *Repository) RemoveModerator(ctx context.Context, communityID int64, userID string) error {
	return r.db.Delete(ctx, communityMember(schema.CommunityModerators, communityID, userID))
}

// IsModerator checks the moderator list first and falls back to community
// ownership. An unknown community has no moderators.
func (r *Repository) IsModerator(ctx context.Context, communityID int64, userID string) (bool, error) {
	assigned, err := r.exists(ctx, communityMember(schema.CommunityModerators, communityID, userID))
	if err != nil || assigned {
		return assigned, err
	}
	owner, err := backend.MaybeSingleInto[struct {
		OwnerID string `json:"owner_id"`
	}](ctx, r.db, backend.From(schema.Communities).Select("owner_id").Where(backend.Eq("id", communityID)))
	if err != nil || owner == nil {
		return false, err
	}
	return owner.OwnerID == userID, nil
}

type logRow struct {
	ID          int64                  `json:"id"`
	CommunityID int64                  `json:"community_id"`
	ModeratorID string                 `json:"moderator_id"`
	PostID      *int64                 `json:"post_id"`
	Action      string                 `json:"action"`
	CreatedAt   *time.Time             `json:"created_at"`
	Profiles    schema.One[profileRef] `json:"profiles"`
}

func (r *Repository) logToDomain(row logRow) domain.ModerationLog {
	l := domain.ModerationLog{
		ID:          row.ID,
		CommunityID: row.CommunityID,
		ModeratorID: row.ModeratorID,
		PostID:      row.PostID,
		Action:      domain.LogAction(row.Action),
		CreatedAt:   row.CreatedAt,
	}
	if u := row.Profiles.Value; u != nil {
		l.ModeratorName = u.Name
		l.ModeratorPhotoURL = r.media.Public(blob.BucketUserAvatars, u.PhotoURL)
	}
	return l
}

func logQuery() backend.Query {
	return backend.From(schema.ModerationLogs).Select("*").Embed("profiles", "name", "photo_url")
}

// ModerationLogs lists the newest entries first. A non-positive limit means
// DefaultLogLimit.
func (r *Repository) ModerationLogs(ctx context.Context, communityID int64, limit int) ([]domain.ModerationLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	rows, err := backend.SelectInto[logRow](ctx, r.db, logQuery().
		Where(backend.Eq("community_id", communityID)).
		OrderBy("created_at", true).
		WithLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ModerationLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.logToDomain(row))
	}
	return out, nil
}

func (r *Repository) CreateLog(ctx context.Context, communityID int64, moderatorID string, action domain.LogAction, postID *int64) (domain.ModerationLog, error) {
	if !action.Valid() {
		return domain.ModerationLog{}, fmt.Errorf("moderation action %q: %w", action, domain.ErrInvalidArgument)
	}
	row, err := insert[logRow](ctx, r.db, schema.ModerationLogs, backend.Row{
		"community_id": communityID,
		"moderator_id": moderatorID,
		"action":       string(action),
		"post_id":      nullableID(postID),
	}, logQuery())
	if err != nil {
		return domain.ModerationLog{}, err
	}
	r.logger.Info().Int64("community_id", communityID).Str("moderator_id", moderatorID).
		Str("action", string(action)).Msg("moderation action recorded")
	return r.logToDomain(row), nil
}
