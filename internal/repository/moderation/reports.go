package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type reportRow struct {
	ID        int64                    `json:"id"`
	PostID    int64                    `json:"post_id"`
	UserID    string                   `json:"user_id"`
	Reason    string                   `json:"reason"`
	Status    *string                  `json:"status"`
	CreatedAt *time.Time               `json:"created_at"`
	Profiles  schema.One[profileRef]   `json:"profiles"`
	Posts     schema.One[reportedPost] `json:"posts"`
}

type reportedPost struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
	UserID   string  `json:"user_id"`
}

type authorRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r *Repository) reportToDomain(row reportRow, authors map[string]string) domain.PostReport {
	status := ""
	if row.Status != nil {
		status = *row.Status
	}
	out := domain.PostReport{
		ID:        row.ID,
		PostID:    row.PostID,
		UserID:    row.UserID,
		Reason:    row.Reason,
		Status:    domain.ParseReportStatus(status),
		CreatedAt: row.CreatedAt,
	}
	if u := row.Profiles.Value; u != nil {
		out.UserName = u.Name
		out.UserPhotoURL = r.media.Public(blob.BucketUserAvatars, u.PhotoURL)
	}
	if p := row.Posts.Value; p != nil {
		out.PostContent = p.Content
		out.PostImageURL = r.media.Public(blob.BucketPostImages, p.ImageURL)
		out.PostAuthorID = p.UserID
		out.PostAuthorName = authors[p.UserID]
	}
	return out
}

// ReportPost files a pending report. A second report of the same post by the
// same user fails with a unique violation.
func (r *Repository) ReportPost(ctx context.Context, postID int64, userID, reason string) (domain.PostReport, error) {
	reason, err := required("reason", reason)
	if err != nil {
		return domain.PostReport{}, err
	}
	row, err := insert[reportRow](ctx, r.db, schema.PostReports,
		backend.Row{"post_id": postID, "user_id": userID, "reason": reason},
		backend.From(schema.PostReports).Select("*"))
	if err != nil {
		return domain.PostReport{}, err
	}
	return r.reportToDomain(row, nil), nil
}

func (r *Repository) UserReports(ctx context.Context, userID string) ([]domain.PostReport, error) {
	rows, err := backend.SelectInto[reportRow](ctx, r.db, backend.From(schema.PostReports).Select("*").
		Where(backend.Eq("user_id", userID)).
		OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	out := make([]domain.PostReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.reportToDomain(row, nil))
	}
	return out, nil
}

// CommunityPostReports lists reports on the community's posts, newest first,
// with the reporter and the reported post's content and author.
func (r *Repository) CommunityPostReports(ctx context.Context, communityID int64) ([]domain.PostReport, error) {
	posts, err := backend.SelectInto[idRow](ctx, r.db, backend.From(schema.Posts).Select("id").
		Where(backend.Eq("community_id", communityID)))
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []domain.PostReport{}, nil
	}
	postIDs := make([]int64, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}

	rows, err := backend.SelectInto[reportRow](ctx, r.db, backend.From(schema.PostReports).Select("*").
		Embed("profiles", "name", "photo_url").
		Embed("posts", "content", "image_url", "user_id").
		Where(backend.In("post_id", postIDs)).
		OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	authors, err := r.authorNames(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PostReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.reportToDomain(row, authors))
	}
	return out, nil
}

func (r *Repository) authorNames(ctx context.Context, rows []reportRow) (map[string]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if p := row.Posts.Value; p != nil && p.UserID != "" && !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	authors, err := backend.SelectInto[authorRow](ctx, r.db, backend.From(schema.Profiles).Select("id", "name").
		Where(backend.In("id", ids)))
	if err != nil {
		return nil, err
	}
	for _, a := range authors {
		names[a.ID] = a.Name
	}
	return names, nil
}

func (r *Repository) UpdateReportStatus(ctx context.Context, reportID int64, status domain.ReportStatus) error {
	if !status.Valid() {
		return fmt.Errorf("report status %q: %w", status, domain.ErrInvalidArgument)
	}
	raw, err := r.db.Update(ctx, backend.From(schema.PostReports).Select("id").Where(backend.Eq("id", reportID)),
		backend.Row{"status": string(status)})
	if err != nil {
		return err
	}
	if _, err := backend.Decode[idRow](raw); errors.Is(err, backend.ErrNoRows) {
		return fmt.Errorf("report %d: %w", reportID, domain.ErrNotFound)
	} else if err != nil {
		return err
	}
	return nil
}

func (r *Repository) HasReportedPost(ctx context.Context, postID int64, userID string) (bool, error) {
	return r.exists(ctx, backend.From(schema.PostReports).
		Where(backend.Eq("post_id", postID), backend.Eq("user_id", userID)))
}

type communityReportRow struct {
	ID          int64      `json:"id"`
	CommunityID int64      `json:"community_id"`
	UserID      string     `json:"user_id"`
	Reason      string     `json:"reason"`
	CreatedAt   *time.Time `json:"created_at"`
}

func (r *Repository) ReportCommunity(ctx context.Context, communityID int64, userID, reason string) (domain.CommunityReport, error) {
	reason, err := required("reason", reason)
	if err != nil {
		return domain.CommunityReport{}, err
	}
	row, err := insert[communityReportRow](ctx, r.db, schema.CommunityReports,
		backend.Row{"community_id": communityID, "user_id": userID, "reason": reason},
		backend.From(schema.CommunityReports).Select("*"))
	if err != nil {
		return domain.CommunityReport{}, err
	}
	return domain.CommunityReport(row), nil
}
