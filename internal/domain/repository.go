package domain

import (
	"context"
	"time"
)

// PostRepository reads feeds and writes posts, likes and bookmarks.
type PostRepository interface {
	UserFeed(ctx context.Context, userID string, page Page) ([]Post, error)
	FollowingFeed(ctx context.Context, userID string, page Page) ([]Post, error)
	PublicFeed(ctx context.Context, page Page) ([]Post, error)
	CommunityPosts(ctx context.Context, communityID int64, page Page) ([]Post, error)
	UserPosts(ctx context.Context, userID string, page Page) ([]Post, error)
	SavedPosts(ctx context.Context, userID string, page Page) ([]Post, error)
	SavedPostsCount(ctx context.Context, userID string) (int, error)
	PendingPosts(ctx context.Context, communityID int64) ([]Post, error)
	PostLikes(ctx context.Context, postID int64) (int, error)
	IsLiked(ctx context.Context, postID int64, userID string) (bool, error)
	IsSaved(ctx context.Context, postID int64, userID string) (bool, error)
	LikePost(ctx context.Context, postID int64, userID string) error
	UnlikePost(ctx context.Context, postID int64, userID string) error
	BookmarkPost(ctx context.Context, postID int64, userID string) error
	UnbookmarkPost(ctx context.Context, postID int64, userID string) error
	SavePost(ctx context.Context, post Post, image *ImageUpload) (Post, error)
	UpdateModerationStatus(ctx context.Context, postID int64, status ModerationStatus) error
	MarkPostForReview(ctx context.Context, postID int64) error
	DeletePost(ctx context.Context, postID int64) error
}

// CommunityRepository manages communities and subscriptions.
type CommunityRepository interface {
	Communities(ctx context.Context, q CommunityQuery) ([]Community, error)
	Community(ctx context.Context, id int64) (*Community, error)
	CommunitiesByOwner(ctx context.Context, userID string) ([]Community, error)
	SubscribedCommunities(ctx context.Context, userID string) ([]Community, error)
	SubscribersCount(ctx context.Context, communityID int64) (int, error)
	SaveCommunity(ctx context.Context, c Community, image *ImageUpload) (Community, error)
	UpdateCommunity(ctx context.Context, c Community, image *ImageUpload) (Community, error)
	Subscribe(ctx context.Context, s Subscription) (Subscription, error)
	Unsubscribe(ctx context.Context, s Subscription) error
	Subscription(ctx context.Context, userID string, communityID int64) (*Subscription, error)
	DeleteCommunity(ctx context.Context, id int64) error
}

// UserRepository manages profiles, the follow graph and notifications.
type UserRepository interface {
	User(ctx context.Context, id string) (*User, error)
	UsersBatch(ctx context.Context, ids []string) (map[string]User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	SetOnlineVisibility(ctx context.Context, id string, visible bool) error
	SetNotificationsEnabled(ctx context.Context, id string, enabled bool) error
	UpdateLastSeenAt(ctx context.Context, id string, at time.Time) error
	UpdateProfilePhoto(ctx context.Context, id string, image ImageUpload, previousPhotoURL *string) (User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error)
	AcceptTerms(ctx context.Context, id, version string) (User, error)
	Notifications(ctx context.Context, userID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	FollowUser(ctx context.Context, followerID, followingID string) error
	UnfollowUser(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	FollowersCount(ctx context.Context, userID string) (int, error)
	FollowingCount(ctx context.Context, userID string) (int, error)
}

// TopicRepository reads the topic taxonomy.
type TopicRepository interface {
	Topics(ctx context.Context) ([]Topic, error)
	Topic(ctx context.Context, id int64) (*Topic, error)
	PopularTopics(ctx context.Context, limit int) ([]Topic, error)
}

// FeatureConfigRepository reads and writes remote configuration rows. Writes
// do not update any in-memory view; callers refresh their own copy.
type FeatureConfigRepository interface {
	All(ctx context.Context) ([]FeatureConfigEntry, error)
	Upsert(ctx context.Context, key string, value ConfigValue, description *string) (FeatureConfigEntry, error)
	Delete(ctx context.Context, key string) error
}

// CommentRepository reads and writes post comments. Comment lists are cached
// per post and patched in place on create.
type CommentRepository interface {
	CommentsForPost(ctx context.Context, postID int64) ([]Comment, error)
	CommentsFromUser(ctx context.Context, userID string) ([]Comment, error)
	SaveComment(ctx context.Context, c Comment) (Comment, error)
	DeleteComment(ctx context.Context, postID, commentID int64) error
}

type PostReportRepository interface {
	ReportPost(ctx context.Context, postID int64, userID, reason string) (PostReport, error)
	UserReports(ctx context.Context, userID string) ([]PostReport, error)
	CommunityPostReports(ctx context.Context, communityID int64) ([]PostReport, error)
	UpdateReportStatus(ctx context.Context, reportID int64, status ReportStatus) error
	HasReportedPost(ctx context.Context, postID int64, userID string) (bool, error)
}

type CommunityReportRepository interface {
	ReportCommunity(ctx context.Context, communityID int64, userID, reason string) (CommunityReport, error)
}

type CommunityBanRepository interface {
	BanFromCommunity(ctx context.Context, ban CommunityBan) (CommunityBan, error)
	UnbanFromCommunity(ctx context.Context, communityID int64, userID string) error
	CommunityBans(ctx context.Context, communityID int64) ([]CommunityBan, error)
	IsBannedFromCommunity(ctx context.Context, communityID int64, userID string) (bool, error)
}

type UserBanRepository interface {
	BanUser(ctx context.Context, ban UserBan) (UserBan, error)
	UnbanUser(ctx context.Context, userID string) error
	UserBan(ctx context.Context, userID string) (*UserBan, error)
	IsBanned(ctx context.Context, userID string) (bool, error)
}

type UserBlockRepository interface {
	BlockUser(ctx context.Context, block UserBlock) (UserBlock, error)
	UnblockUser(ctx context.Context, blockerID, blockedID string) error
	BlockedUserIDs(ctx context.Context, blockerID string) ([]string, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

type CommunityModeratorRepository interface {
	Moderators(ctx context.Context, communityID int64) ([]CommunityModerator, error)
	AddModerator(ctx context.Context, communityID int64, userID, assignedBy string) (CommunityModerator, error)
	RemoveModerator(ctx context.Context, communityID int64, userID string) error
	// IsModerator is true for assigned moderators and for the community owner.
	IsModerator(ctx context.Context, communityID int64, userID string) (bool, error)
}

type ModerationLogRepository interface {
	ModerationLogs(ctx context.Context, communityID int64, limit int) ([]ModerationLog, error)
	CreateLog(ctx context.Context, communityID int64, moderatorID string, action LogAction, postID *int64) (ModerationLog, error)
}
