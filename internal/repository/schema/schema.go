// Package schema names the backend tables and decodes the embedded shapes
// shared by the repositories.
package schema

import (
	"bytes"
	"encoding/json"
)

const (
	Posts         = "posts"
	Communities   = "communities"
	Subscriptions = "subscriptions"
	Profiles      = "profiles"
	Likes         = "likes"
	Comments      = "comments"
	SavedPosts    = "saved_posts"
	UserFollows   = "user_follows"
	Notifications = "notifications"
	Topics        = "topics"
	FeatureConfig = "feature_config"

	PostReports         = "post_reports"
	CommunityReports    = "community_reports"
	CommunityBans       = "community_bans"
	UserBans            = "user_bans"
	UserBlocks          = "user_blocks"
	CommunityModerators = "community_moderators"
	ModerationLogs      = "moderation_logs"
)

// One is an embedded to-one relation. Backends render it either as an object
// or as an array holding at most one object; both decode to the same value.
type One[T any] struct {
	Value *T
}

func (o *One[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	o.Value = nil
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			o.Value = &list[0]
		}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o One[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// Count is an embedded aggregate rendered as [{"count": n}].
type Count []struct {
	Count int `json:"count"`
}

// Value is the aggregate, or zero when it was not requested.
func (c Count) Value() int {
	if len(c) == 0 {
		return 0
	}
	return c[0].Count
}

// PostID is a projection of rows keyed by post.
type PostID struct {
	PostID int64 `json:"post_id"`
}

// PostIDs collects the post ids of rows in order.
func PostIDs(rows []PostID) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.PostID)
	}
	return out
}
