package domain

import (
	"strings"
	"time"
)

// Role is the account role stored on a profile.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is a normalized profile. Follower and following counts are nil when
// unknown, which is different from zero.
type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	PhotoURL             *string    `json:"photoUrl"`
	Role                 Role       `json:"role"`
	CreatedAt            *time.Time `json:"createdAt,omitempty"`
	OnlineVisible        bool       `json:"onlineVisible"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
	LastSeenAt           *time.Time `json:"lastSeenAt"`
	FollowersCount       *int       `json:"followersCount,omitempty"`
	FollowingCount       *int       `json:"followingCount,omitempty"`
	Bio                  *string    `json:"bio"`
	Location             *string    `json:"location"`
	TermsAcceptedVersion *string    `json:"termsAcceptedVersion"`
	TermsAcceptedAt      *time.Time `json:"termsAcceptedAt"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left as is;
// an empty Bio or Location clears the stored value.
type ProfileUpdate struct {
	Name     *string
	Bio      *string
	Location *string
}

type ModerationStatus string

const (
	ModerationApproved ModerationStatus = "approved"
	ModerationPending  ModerationStatus = "pending"
	ModerationRejected ModerationStatus = "rejected"
)

// ParseModerationStatus maps a stored value to a status. Missing or unknown
// values are treated as approved.
func ParseModerationStatus(raw string) ModerationStatus {
	switch ModerationStatus(raw) {
	case ModerationPending:
		return ModerationPending
	case ModerationRejected:
		return ModerationRejected
	default:
		return ModerationApproved
	}
}

func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationApproved, ModerationPending, ModerationRejected:
		return true
	}
	return false
}

// Post is a normalized post. IsLiked and IsSaved are scoped to the viewer
// that requested the list.
type Post struct {
	ID                int64            `json:"id"`
	Content           string           `json:"content"`
	ImageURL          *string          `json:"imageUrl"`
	CreatedAt         *time.Time       `json:"createdAt,omitempty"`
	CommunityID       int64            `json:"communityId"`
	CommunityTitle    string           `json:"communityTitle,omitempty"`
	CommunityImageURL *string          `json:"communityImageUrl"`
	UserID            string           `json:"userId"`
	UserName          string           `json:"userName,omitempty"`
	UserPhotoURL      *string          `json:"userPhotoUrl"`
	ModerationStatus  ModerationStatus `json:"moderationStatus"`
	LikesCount        int              `json:"likesCount"`
	CommentsCount     int              `json:"commentsCount"`
	IsLiked           bool             `json:"isLiked"`
	IsSaved           bool             `json:"isSaved"`
}

type PostPermission string

const (
	PostPermissionAnyoneFollows PostPermission = "anyone_follows"
	PostPermissionModerated     PostPermission = "moderated"
	PostPermissionPrivate       PostPermission = "private"
)

func ParsePostPermission(raw string) PostPermission {
	switch PostPermission(raw) {
	case PostPermissionModerated:
		return PostPermissionModerated
	case PostPermissionPrivate:
		return PostPermissionPrivate
	default:
		return PostPermissionAnyoneFollows
	}
}

type Community struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	ImageURL         *string        `json:"imageUrl"`
	OwnerID          string         `json:"ownerId"`
	TopicID          *int64         `json:"topicId"`
	CreatedAt        *time.Time     `json:"createdAt,omitempty"`
	SubscribersCount *int           `json:"subscribersCount,omitempty"`
	PostPermission   PostPermission `json:"postPermission"`
}

type Subscription struct {
	ID          int64  `json:"id"`
	UserID      string `json:"userId"`
	CommunityID int64  `json:"communityId"`
}

type Tone string

const (
	ToneOrange Tone = "orange"
	ToneGreen  Tone = "green"
	TonePurple Tone = "purple"
	ToneBlue   Tone = "blue"
)

// ParseTone maps a stored value to a tone. Unknown values fall back to blue,
// the column default.
func ParseTone(raw string) Tone {
	switch Tone(raw) {
	case ToneOrange, ToneGreen, TonePurple:
		return Tone(raw)
	default:
		return ToneBlue
	}
}

type Topic struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Label     string     `json:"label"`
	Icon      string     `json:"icon"`
	Tone      Tone       `json:"tone"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type NotificationType string

const (
	NotificationFollow      NotificationType = "follow"
	NotificationPostLike    NotificationType = "post_like"
	NotificationPostComment NotificationType = "post_comment"
)

type NotificationActor struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	PhotoURL *string `json:"photoUrl"`
}

type NotificationPost struct {
	ID       int64   `json:"id"`
	ImageURL *string `json:"imageUrl"`
	Content  *string `json:"content"`
}

type Notification struct {
	ID             int64             `json:"id"`
	Type           NotificationType  `json:"type"`
	CreatedAt      time.Time         `json:"createdAt"`
	ReadAt         *time.Time        `json:"readAt"`
	Actor          NotificationActor `json:"actor"`
	Post           *NotificationPost `json:"post,omitempty"`
	CommentPreview *string           `json:"commentPreview,omitempty"`
	IsFollowedByMe *bool             `json:"isFollowedByMe,omitempty"`
}

// ImageUpload is raw image content to be stored in a bucket.
type ImageUpload struct {
	Data        []byte
	Extension   string
	ContentType string
}

// Page addresses one page of a list. The zero value is the first page of
// DefaultPageSize items.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// FirstPage is the page cleared by write-path invalidation.
var FirstPage = Page{}

// Normalize substitutes defaults so equivalent pages compare equal.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Range returns the inclusive row bounds of the page.
func (p Page) Range() (from, to int) {
	p = p.Normalize()
	from = p.Number * p.Size
	return from, from + p.Size - 1
}

type CommunitySort string

const (
	SortMostFollowed  CommunitySort = "mostFollowed"
	SortLeastFollowed CommunitySort = "leastFollowed"
	SortNewest        CommunitySort = "newest"
	SortOldest        CommunitySort = "oldest"
)

// CommunityQuery filters the community directory.
type CommunityQuery struct {
	Search  string
	Sort    CommunitySort
	TopicID *int64
}

// Normalize trims and lower-cases the search text and fills in the default
// sort, so queries that differ only by omitted fields compare equal.
func (q CommunityQuery) Normalize() CommunityQuery {
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	switch q.Sort {
	case SortMostFollowed, SortLeastFollowed, SortNewest, SortOldest:
	default:
		q.Sort = SortMostFollowed
	}
	if q.TopicID != nil {
		id := *q.TopicID
		q.TopicID = &id
	}
	return q
}

// Comment is a normalized comment with its author's display fields.
type Comment struct {
	ID           int64      `json:"id"`
	PostID       int64      `json:"postId"`
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName"`
	UserImageURL *string    `json:"userImageUrl"`
	Content      string     `json:"content"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}
