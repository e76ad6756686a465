// Package moderation implements the report, ban, block, moderator and
// moderation log repositories. None of them are cached: moderation reads
// must reflect the latest writes.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"socialcore/internal/backend"
	"socialcore/internal/domain"
	"socialcore/internal/repository/media"
)

// DefaultLogLimit bounds ModerationLogs when no limit is given.
const DefaultLogLimit = 100

type Repository struct {
	db     backend.Client
	media  *media.Resolver
	logger zerolog.Logger
}

var (
	_ domain.PostReportRepository         = (*Repository)(nil)
	_ domain.CommunityReportRepository    = (*Repository)(nil)
	_ domain.CommunityBanRepository       = (*Repository)(nil)
	_ domain.UserBanRepository            = (*Repository)(nil)
	_ domain.UserBlockRepository          = (*Repository)(nil)
	_ domain.CommunityModeratorRepository = (*Repository)(nil)
	_ domain.ModerationLogRepository      = (*Repository)(nil)
)

func New(db backend.Client, resolver *media.Resolver, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		media:  resolver,
		logger: logger.With().Str("component", "repository.moderation").Logger(),
	}
}

type profileRef struct {
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

type idRow struct {
	ID int64 `json:"id"`
}

// exists reports whether q matches a row.
func (r *Repository) exists(ctx context.Context, q backend.Query) (bool, error) {
	row, err := backend.MaybeSingleInto[idRow](ctx, r.db, q.Select("id"))
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// insert adds one row and decodes it through returning.
func insert[T any](ctx context.Context, db backend.Client, table string, values backend.Row, returning backend.Query) (T, error) {
	raw, err := db.Insert(ctx, table, values, returning)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeWritten[T](raw, "insert into "+table)
}

func decodeWritten[T any](raw []byte, op string) (T, error) {
	row, err := backend.Decode[T](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return row, fmt.Errorf("%s: %w", op, domain.ErrNoData)
	}
	return row, err
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s is required: %w", field, domain.ErrInvalidArgument)
	}
	return v, nil
}

// nullable stores blank text as NULL.
func nullable(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return strings.TrimSpace(*s)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
