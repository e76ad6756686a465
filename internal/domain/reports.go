package domain

import "time"

type ReportStatus string

const (
	ReportPending         ReportStatus = "pending"
	ReportResolvedDeleted ReportStatus = "resolved_deleted"
	ReportResolvedSafe    ReportStatus = "resolved_safe"
)

// ParseReportStatus maps a stored value to a status. Missing or unknown
// values are pending.
func ParseReportStatus(raw string) ReportStatus {
	switch ReportStatus(raw) {
	case ReportResolvedDeleted, ReportResolvedSafe:
		return ReportStatus(raw)
	default:
		return ReportPending
	}
}

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportResolvedDeleted, ReportResolvedSafe:
		return true
	}
	return false
}

// PostReport is a user's report of a post. The Post* fields describe the
// reported post and are filled only by community listings.
type PostReport struct {
	ID             int64        `json:"id"`
	PostID         int64        `json:"postId"`
	UserID         string       `json:"userId"`
	UserName       string       `json:"userName,omitempty"`
	UserPhotoURL   *string      `json:"userPhotoUrl"`
	Reason         string       `json:"reason"`
	Status         ReportStatus `json:"status"`
	CreatedAt      *time.Time   `json:"createdAt,omitempty"`
	PostContent    string       `json:"postContent,omitempty"`
	PostImageURL   *string      `json:"postImageUrl"`
	PostAuthorID   string       `json:"postAuthorId,omitempty"`
	PostAuthorName string       `json:"postAuthorName,omitempty"`
}

type CommunityReport struct {
	ID          int64      `json:"id"`
	CommunityID int64      `json:"communityId"`
	UserID      string     `json:"userId"`
	Reason      string     `json:"reason"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// CommunityBan removes a user from one community.
type CommunityBan struct {
	ID           int64      `json:"id"`
	CommunityID  int64      `json:"communityId"`
	UserID       string     `json:"userId"`
	BannedBy     string     `json:"bannedBy"`
	Reason       *string    `json:"reason"`
	SourcePostID *int64     `json:"sourcePostId"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// UserBan is a platform-wide ban. A user has at most one.
type UserBan struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"userId"`
	BannedBy     *string    `json:"bannedBy"`
	Reason       *string    `json:"reason"`
	SourcePostID *int64     `json:"sourcePostId"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

type UserBlock struct {
	ID           int64      `json:"id"`
	BlockerID    string     `json:"blockerId"`
	BlockedID    string     `json:"blockedId"`
	Reason       *string    `json:"reason"`
	SourcePostID *int64     `json:"sourcePostId"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

type CommunityModerator struct {
	ID           int64      `json:"id"`
	CommunityID  int64      `json:"communityId"`
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName,omitempty"`
	UserPhotoURL *string    `json:"userPhotoUrl"`
	AssignedBy   string     `json:"assignedBy"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// LogAction is what a moderator did, as recorded in the moderation log.
type LogAction string

const (
	LogApprovePost      LogAction = "approve_post"
	LogRejectPost       LogAction = "reject_post"
	LogMarkForReview    LogAction = "mark_for_review"
	LogDeletePost       LogAction = "delete_post"
	LogMarkSafe         LogAction = "mark_safe"
	LogModeratorAdded   LogAction = "moderator_added"
	LogModeratorRemoved LogAction = "moderator_removed"
	LogSettingsChanged  LogAction = "settings_changed"
	LogUserBanned       LogAction = "user_banned"
)

func (a LogAction) Valid() bool {
	switch a {
	case LogApprovePost, LogRejectPost, LogMarkForReview, LogDeletePost, LogMarkSafe,
		LogModeratorAdded, LogModeratorRemoved, LogSettingsChanged, LogUserBanned:
		return true
	}
	return false
}

type ModerationLog struct {
	ID                int64      `json:"id"`
	CommunityID       int64      `json:"communityId"`
	ModeratorID       string     `json:"moderatorId"`
	ModeratorName     string     `json:"moderatorName,omitempty"`
	ModeratorPhotoURL *string    `json:"moderatorPhotoUrl"`
	PostID            *int64     `json:"postId"`
	Action            LogAction  `json:"action"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
}
