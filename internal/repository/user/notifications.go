package user

import (
	"context"
	"time"

	"socialcore/internal/backend"
	"socialcore/internal/blob"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type notificationRow struct {
	ID        int64                           `json:"id"`
	Type      domain.NotificationType         `json:"type"`
	CreatedAt time.Time                       `json:"created_at"`
	ReadAt    *time.Time                      `json:"read_at"`
	Metadata  *notificationMetadata           `json:"metadata"`
	Actor     schema.One[actorRow]            `json:"actor"`
	Post      schema.One[notificationPostRow] `json:"post"`
}

type notificationMetadata struct {
	CommentPreview *string `json:"comment_preview"`
}

type actorRow struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

type notificationPostRow struct {
	ID       int64   `json:"id"`
	ImageURL *string `json:"image_url"`
	Content  *string `json:"content"`
}

// Notifications lists the user's notifications newest first. Rows whose
// actor is gone are dropped. Follow notifications report whether the user
// already follows the actor back.
func (r *Repository) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := backend.SelectInto[notificationRow](ctx, r.db, backend.From(schema.Notifications).
		Select("id", "type", "created_at", "read_at", "metadata").
		Embed("actor", "id", "name", "photo_url").
		Embed("post", "id", "image_url", "content").
		Where(backend.Eq("recipient_id", userID)).
		OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}

	var followActors []string
	for _, row := range rows {
		if row.Type == domain.NotificationFollow && row.Actor.Value != nil && row.Actor.Value.ID != "" {
			followActors = append(followActors, row.Actor.Value.ID)
		}
	}
	followed := map[string]bool{}
	if len(followActors) > 0 {
		follows, err := backend.SelectInto[followRow](ctx, r.db, backend.From(schema.UserFollows).
			Select("following_id").
			Where(backend.Eq("follower_id", userID), backend.In("following_id", followActors)))
		if err != nil {
			return nil, err
		}
		for _, f := range follows {
			followed[f.FollowingID] = true
		}
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		actor := row.Actor.Value
		if actor == nil || actor.ID == "" {
			continue
		}
		n := domain.Notification{
			ID:        row.ID,
			Type:      row.Type,
			CreatedAt: row.CreatedAt,
			ReadAt:    row.ReadAt,
			Actor: domain.NotificationActor{
				ID:       actor.ID,
				Name:     actor.Name,
				PhotoURL: r.media.Public(blob.BucketUserAvatars, actor.PhotoURL),
			},
		}
		if p := row.Post.Value; p != nil {
			n.Post = &domain.NotificationPost{
				ID:       p.ID,
				ImageURL: r.media.Public(blob.BucketPostImages, p.ImageURL),
				Content:  p.Content,
			}
		}
		if row.Metadata != nil {
			n.CommentPreview = row.Metadata.CommentPreview
		}
		if row.Type == domain.NotificationFollow {
			f := followed[actor.ID]
			n.IsFollowedByMe = &f
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	_, err := r.db.Update(ctx,
		backend.From(schema.Notifications).Select("id").Where(backend.Eq("id", notificationID)),
		backend.Row{"read_at": r.now().UTC()})
	return err
}

// MarkAllNotificationsRead stamps every unread notification of the user.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := r.db.Update(ctx,
		backend.From(schema.Notifications).Select("id").
			Where(backend.Eq("recipient_id", userID), backend.IsNull("read_at")),
		backend.Row{"read_at": r.now().UTC()})
	return err
}
