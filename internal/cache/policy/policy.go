// Package policy maps logical queries to canonical cache keys and holds the
// TTL for each entity class. Builders substitute defaults before formatting,
// so equivalent queries always produce the same key.
package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"socialcore/internal/domain"
)

// TTLs per entity class. Feeds churn fastest and the topic taxonomy slowest.
const (
	TTLDefault     = 5 * time.Minute
	TTLFeed        = 2 * time.Minute
	TTLComments    = 2 * time.Minute
	TTLCommunities = 10 * time.Minute
	TTLProfiles    = 10 * time.Minute
	TTLSavedPosts  = 2 * time.Minute
	TTLTopics      = 30 * time.Minute
)

// PublicFeedOwner is the pseudo user id the public feed is cached under.
const PublicFeedOwner = "public"

const (
	DefaultPopularTopicsLimit = 10
	MaxPopularTopicsLimit     = 50
)

func User(id string) string {
	return "user:" + normalizeID(id)
}

// Communities keys the community directory by search text, sort and topic.
func Communities(q domain.CommunityQuery) string {
	q = q.Normalize()
	search := "all"
	if q.Search != "" {
		search = "search:" + q.Search
	}
	topic := "all"
	if q.TopicID != nil {
		topic = strconv.FormatInt(*q.TopicID, 10)
	}
	return fmt.Sprintf("communities:%s:sort:%s:topic:%s", search, q.Sort, topic)
}

func Community(id int64) string {
	return "community:" + strconv.FormatInt(id, 10)
}

func CommunitiesByOwner(userID string) string {
	return "communities:user:" + normalizeID(userID)
}

func CommunitiesBySubscriber(userID string) string {
	return "communities:subscriber:" + normalizeID(userID)
}

func FeedByUser(userID string, page domain.Page) string {
	return "feed:user:" + normalizeID(userID) + pageSuffix(page)
}

func PublicFeed(page domain.Page) string {
	return FeedByUser(PublicFeedOwner, page)
}

func FeedByFollowing(userID string, page domain.Page) string {
	return "feed:following:" + normalizeID(userID) + pageSuffix(page)
}

func PostsByCommunity(communityID int64, page domain.Page) string {
	return "posts:community:" + strconv.FormatInt(communityID, 10) + pageSuffix(page)
}

func PostsByUser(userID string, page domain.Page) string {
	return "posts:user:" + normalizeID(userID) + pageSuffix(page)
}

func CommentsByPost(postID int64) string {
	return "comments:post:" + strconv.FormatInt(postID, 10)
}

func SavedPostsByUser(userID string, page domain.Page) string {
	return "saved_posts:user:" + normalizeID(userID) + pageSuffix(page)
}

func Topics() string {
	return "topics:all"
}

func Topic(id int64) string {
	return "topic:" + strconv.FormatInt(id, 10)
}

func PopularTopics(limit int) string {
	return "topics:popular:" + strconv.Itoa(NormalizeLimit(limit))
}

// NormalizeLimit clamps a popular-topics limit into its accepted range.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPopularTopicsLimit
	}
	if limit > MaxPopularTopicsLimit {
		return MaxPopularTopicsLimit
	}
	return limit
}

func pageSuffix(page domain.Page) string {
	page = page.Normalize()
	return ":page:" + strconv.Itoa(page.Number) + ":size:" + strconv.Itoa(page.Size)
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
