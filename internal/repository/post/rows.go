package post

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type postRow struct {
	ID               int64                    `json:"id"`
	Content          string                   `json:"content"`
	ImageURL         *string                  `json:"image_url"`
	CreatedAt        *time.Time               `json:"created_at"`
	CommunityID      int64                    `json:"community_id"`
	UserID           string                   `json:"user_id"`
	ModerationStatus *string                  `json:"moderation_status"`
	Communities      schema.One[communityRef] `json:"communities"`
	Profiles         schema.One[profileRef]   `json:"profiles"`
	Likes            schema.Count             `json:"likes"`
	Comments         schema.Count             `json:"comments"`
}

type communityRef struct {
	Title    string  `json:"title"`
	ImageURL *string `json:"image_url"`
}

type profileRef struct {
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

// viewerFlags holds the ids a viewer has liked and saved within one page.
type viewerFlags struct {
	liked map[int64]bool
	saved map[int64]bool
	// allSaved marks every post as saved, for the saved-posts list.
	allSaved bool
}

func (f viewerFlags) apply(p *domain.Post) {
	p.IsLiked = f.liked[p.ID]
	p.IsSaved = f.allSaved || f.saved[p.ID]
}

func (r *Repository) toDomain(ctx context.Context, row postRow) domain.Post {
	p := domain.Post{
		ID:               row.ID,
		Content:          row.Content,
		ImageURL:         r.media.Public(blob.BucketPostImages, row.ImageURL),
		CreatedAt:        row.CreatedAt,
		CommunityID:      row.CommunityID,
		UserID:           row.UserID,
		ModerationStatus: domain.ParseModerationStatus(deref(row.ModerationStatus)),
		LikesCount:       row.Likes.Value(),
		CommentsCount:    row.Comments.Value(),
	}
	if c := row.Communities.Value; c != nil {
		p.CommunityTitle = c.Title
		p.CommunityImageURL = r.media.Signed(ctx, blob.BucketCommunityImages, c.ImageURL)
	}
	if u := row.Profiles.Value; u != nil {
		p.UserName = u.Name
		p.UserPhotoURL = r.media.Public(blob.BucketUserAvatars, u.PhotoURL)
	}
	return p
}

// toDomainAll maps rows in order, resolving image URLs concurrently.
func (r *Repository) toDomainAll(ctx context.Context, rows []postRow, flags *viewerFlags) []domain.Post {
	out := make([]domain.Post, len(rows))
	var g errgroup.Group
	g.SetLimit(resolveConcurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			p := r.toDomain(ctx, row)
			if flags != nil {
				flags.apply(&p)
			}
			out[i] = p
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// viewerFlags looks up which of ids userID liked and, when withSaved is
// set, saved. Both lookups run concurrently.
func (r *Repository) viewerFlags(ctx context.Context, userID string, ids []int64, withSaved bool) (viewerFlags, error) {
	var liked, saved []schema.PostID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		liked, err = backend.SelectInto[schema.PostID](gctx, r.db, viewerQuery(schema.Likes, userID, ids))
		return err
	})
	if withSaved {
		g.Go(func() error {
			var err error
			saved, err = backend.SelectInto[schema.PostID](gctx, r.db, viewerQuery(schema.SavedPosts, userID, ids))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return viewerFlags{}, err
	}
	return viewerFlags{liked: idSet(liked), saved: idSet(saved)}, nil
}

func viewerQuery(table, userID string, ids []int64) backend.Query {
	return backend.From(table).
		Select("post_id").
		Where(backend.Eq("user_id", userID), backend.In("post_id", ids))
}

func idSet(rows []schema.PostID) map[int64]bool {
	set := make(map[int64]bool, len(rows))
	for _, r := range rows {
		set[r.PostID] = true
	}
	return set
}

func rowIDs(rows []postRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
