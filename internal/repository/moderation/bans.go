package moderation

import (
	"context"
	"fmt"
	"time"

	"socialcore/internal/backend"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type communityBanRow struct {
	ID           int64      `json:"id"`
	CommunityID  int64      `json:"community_id"`
	UserID       string     `json:"user_id"`
	BannedBy     string     `json:"banned_by"`
	Reason       *string    `json:"reason"`
	SourcePostID *int64     `json:"source_post_id"`
	CreatedAt    *time.Time `json:"created_at"`
}

func (r *Repository) BanFromCommunity(ctx context.Context, ban domain.CommunityBan) (domain.CommunityBan, error) {
	row, err := insert[communityBanRow](ctx, r.db, schema.CommunityBans, backend.Row{
		"community_id":   ban.CommunityID,
		"user_id":        ban.UserID,
		"banned_by":      ban.BannedBy,
		"reason":         nullable(ban.Reason),
		"source_post_id": nullableID(ban.SourcePostID),
	}, backend.From(schema.CommunityBans).Select("*"))
	if err != nil {
		return domain.CommunityBan{}, err
	}
	return domain.CommunityBan(row), nil
}

func (r *Repository) UnbanFromCommunity(ctx context.Context, communityID int64, userID string) error {
	return r.db.Delete(ctx, communityMember(schema.CommunityBans, communityID, userID))
}

func (r *Repository) CommunityBans(ctx context.Context, communityID int64) ([]domain.CommunityBan, error) {
	rows, err := backend.SelectInto[communityBanRow](ctx, r.db, backend.From(schema.CommunityBans).Select("*").
		Where(backend.Eq("community_id", communityID)).
		OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommunityBan, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CommunityBan(row))
	}
	return out, nil
}

func (r *Repository) IsBannedFromCommunity(ctx context.Context, communityID int64, userID string) (bool, error) {
	return r.exists(ctx, communityMember(schema.CommunityBans, communityID, userID))
}

type userBanRow struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	BannedBy     *string    `json:"banned_by"`
	Reason       *string    `json:"reason"`
	SourcePostID *int64     `json:"source_post_id"`
	CreatedAt    *time.Time `json:"created_at"`
}

// BanUser bans a user platform-wide. Banning again replaces the existing ban.
func (r *Repository) BanUser(ctx context.Context, ban domain.UserBan) (domain.UserBan, error) {
	raw, err := r.db.Upsert(ctx, schema.UserBans, backend.Row{
		"user_id":        ban.UserID,
		"banned_by":      nullable(ban.BannedBy),
		"reason":         nullable(ban.Reason),
		"source_post_id": nullableID(ban.SourcePostID),
	}, backend.UpsertOptions{OnConflict: []string{"user_id"}}, backend.From(schema.UserBans).Select("*"))
	if err != nil {
		return domain.UserBan{}, err
	}
	row, err := decodeWritten[userBanRow](raw, "ban user")
	if err != nil {
		return domain.UserBan{}, err
	}
	return domain.UserBan(row), nil
}

func (r *Repository) UnbanUser(ctx context.Context, userID string) error {
	return r.db.Delete(ctx, backend.From(schema.UserBans).Where(backend.Eq("user_id", userID)))
}

// UserBan returns nil when the user is not banned.
func (r *Repository) UserBan(ctx context.Context, userID string) (*domain.UserBan, error) {
	row, err := backend.MaybeSingleInto[userBanRow](ctx, r.db, backend.From(schema.UserBans).Select("*").
		Where(backend.Eq("user_id", userID)))
	if err != nil || row == nil {
		return nil, err
	}
	ban := domain.UserBan(*row)
	return &ban, nil
}

func (r *Repository) IsBanned(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, backend.From(schema.UserBans).Where(backend.Eq("user_id", userID)))
}

type userBlockRow struct {
	ID           int64      `json:"id"`
	BlockerID    string     `json:"blocker_id"`
	BlockedID    string     `json:"blocked_id"`
	Reason       *string    `json:"reason"`
	SourcePostID *int64     `json:"source_post_id"`
	CreatedAt    *time.Time `json:"created_at"`
}

func (r *Repository) BlockUser(ctx context.Context, block domain.UserBlock) (domain.UserBlock, error) {
	if block.BlockerID == block.BlockedID {
		return domain.UserBlock{}, fmt.Errorf("user %s cannot block themselves: %w", block.BlockerID, domain.ErrInvalidArgument)
	}
	row, err := insert[userBlockRow](ctx, r.db, schema.UserBlocks, backend.Row{
		"blocker_id":     block.BlockerID,
		"blocked_id":     block.BlockedID,
		"reason":         nullable(block.Reason),
		"source_post_id": nullableID(block.SourcePostID),
	}, backend.From(schema.UserBlocks).Select("*"))
	if err != nil {
		return domain.UserBlock{}, err
	}
	return domain.UserBlock(row), nil
}

func (r *Repository) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	return r.db.Delete(ctx, blockEdge(blockerID, blockedID))
}

func (r *Repository) BlockedUserIDs(ctx context.Context, blockerID string) ([]string, error) {
	rows, err := backend.SelectInto[struct {
		BlockedID string `json:"blocked_id"`
	}](ctx, r.db, backend.From(schema.UserBlocks).Select("blocked_id").Where(backend.Eq("blocker_id", blockerID)))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.BlockedID)
	}
	return out, nil
}

func (r *Repository) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return r.exists(ctx, blockEdge(blockerID, blockedID))
}

func blockEdge(blockerID, blockedID string) backend.Query {
	return backend.From(schema.UserBlocks).
		Where(backend.Eq("blocker_id", blockerID), backend.Eq("blocked_id", blockedID))
}

func communityMember(table string, communityID int64, userID string) backend.Query {
	return backend.From(table).
		Where(backend.Eq("community_id", communityID), backend.Eq("user_id", userID))
}
