package post

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/backend"
	"socialcore/internal/backend/backendtest"
	"socialcore/internal/blob"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/repotest"
	"socialcore/internal/repository/schema"
)

func newRepo(t *testing.T) (*Repository, *repotest.Harness) {
	h := repotest.New(t)
	return New(h.DB, h.Cache, h.Media, h.Logger), h
}

func postJSON(id int64, userID string, imageURL string) string {
	image := "null"
	if imageURL != "" {
		image = fmt.Sprintf("%q", imageURL)
	}
	return fmt.Sprintf(`{"id":%d,"content":"post %d","image_url":%s,"created_at":"2024-05-01T10:00:00Z",`+
		`"community_id":5,"user_id":%q,"moderation_status":null,`+
		`"communities":{"title":"Gophers","image_url":"c/5.png"},"profiles":{"name":"Ann","photo_url":"u1/a.png"},`+
		`"likes":[{"count":3}],"comments":[{"count":1}]}`, id, id, image, userID)
}

func rows(items ...string) string {
	out := "["
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out + "]"
}

func TestUserFeedDecoratesViewerFlags(t *testing.T) {
	ctx := context.Background()
	repo, h := newRepo(t)
	_, err := h.Blobs.Upload(ctx, blob.BucketCommunityImages, "c/5.png", []byte("x"), blob.UploadOptions{})
	require.NoError(t, err)

	h.DB.Return(backendtest.OpSelect, schema.Subscriptions, `[{"community_id":5}]`)
	h.DB.Return(backendtest.OpSelect, schema.Posts, rows(postJSON(1, "u2", ""), postJSON(2, "u3", "u3/2.jpg")))
	h.DB.Return(backendtest.OpSelect, schema.Likes, `[{"post_id":2}]`)
	h.DB.Return(backendtest.OpSelect, schema.SavedPosts, `[{"post_id":1}]`)

	feed, err := repo.UserFeed(ctx, "u1", domain.Page{})
	require.NoError(t, err)
	require.Len(t, feed, 2)

	assert.Equal(t, int64(1), feed[0].ID)
	assert.False(t, feed[0].IsLiked)
	assert.True(t, feed[0].IsSaved)
	assert.True(t, feed[1].IsLiked)
	assert.False(t, feed[1].IsSaved)

	assert.Equal(t, 3, feed[0].LikesCount)
	assert.Equal(t, 1, feed[0].CommentsCount)
	assert.Equal(t, "Gophers", feed[0].CommunityTitle)
	assert.Equal(t, "Ann", feed[0].UserName)
	assert.Equal(t, domain.ModerationApproved, feed[0].ModerationStatus)
	assert.Nil(t, feed[0].ImageURL)
	require.NotNil(t, feed[1].ImageURL)
	assert.Equal(t, blob.DefaultMemoryBaseURL+"/public/post-images/u3/2.jpg", *feed[1].ImageURL)
	require.NotNil(t, feed[0].CommunityImageURL)
	assert.Contains(t, *feed[0].CommunityImageURL, "/sign/community-images/c/5.png")
	require.NotNil(t, feed[0].UserPhotoURL)
	assert.Contains(t, *feed[0].UserPhotoURL, "/public/user-avatars/u1/a.png")

	calls := h.DB.Calls(backendtest.OpSelect, schema.Posts)
	require.Len(t, calls, 1)
	q := calls[0].Query
	require.Len(t, q.Filters, 1)
	assert.Equal(t, backend.OpOr, q.Filters[0].Op)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, domain.DefaultPageSize, q.Limit)

	// warm cache: no further backend traffic
	_, err = repo.UserFeed(ctx, "u1", domain.Page{})
	require.NoError(t, err)
	assert.Len(t, h.DB.Calls(backendtest.OpSelect, schema.Posts), 1)
}

func TestUserFeedWithoutSubscriptionsFiltersByAuthor(t *testing.T) {
	repo, h := newRepo(t)
	_, err := repo.UserFeed(context.Background(), "u1", domain.Page{Number: 2})
	require.NoError(t, err)

	calls := h.DB.Calls(backendtest.OpSelect, schema.Posts)
	require.Len(t, calls, 1)
	q := calls[0].Query
	require.Len(t, q.Filters, 1)
	assert.Equal(t, backend.Eq("user_id", "u1"), q.Filters[0])
	assert.Equal(t, 40, q.Offset)
}

func TestCommunityImageSigningFailureDegradesToNil(t *testing.T) {
	repo, h := newRepo(t)
	h.DB.Return(backendtest.OpSelect, schema.Posts, rows(postJSON(1, "u2", "")))

	feed, err := repo.CommunityPosts(context.Background(), 5, domain.Page{})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Nil(t, feed[0].CommunityImageURL)
	assert.Empty(t, h.DB.Calls(backendtest.OpSelect, schema.Likes), "community lists carry no viewer flags")
}

func TestFollowingFeedWithNoFollowsIsEmpty(t *testing.T) {
	repo, h := newRepo(t)
	feed, err := repo.FollowingFeed(context.Background(), "u1", domain.Page{})
	require.NoError(t, err)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
	assert.Empty(t, h.DB.Calls(backendtest.OpSelect, schema.Posts))
	assert.True(t, h.Cached(policy.FeedByFollowing("u1", domain.Page{})))
}

func TestFollowingFeedQueriesFollowedAuthors(t *testing.T) {
	repo, h := newRepo(t)
	h.DB.Return(backendtest.OpSelect, schema.UserFollows, `[{"following_id":"u2"},{"following_id":"u3"}]`)
	h.DB.Return(backendtest.OpSelect, schema.Posts, rows(postJSON(7, "u2", "")))

	feed, err := repo.FollowingFeed(context.Background(), "u1", domain.Page{})
	require.NoError(t, err)
	require.Len(t, feed, 1)

	q := h.DB.Calls(backendtest.OpSelect, schema.Posts)[0].Query
	v, ok := backendtest.FilterValue(q, "user_id")
	require.True(t, ok)
	assert.Equal(t, []any{"u2", "u3"}, v)
	assert.Len(t, h.DB.Calls(backendtest.OpSelect, schema.SavedPosts), 1)
}

func TestSavedPostsFollowSaveOrder(t *testing.T) {
	repo, h := newRepo(t)
	h.DB.Return(backendtest.OpSelect, schema.SavedPosts, `[{"post_id":2},{"post_id":1},{"post_id":9}]`)
	h.DB.Return(backendtest.OpSelect, schema.Posts, rows(postJSON(1, "u2", ""), postJSON(2, "u2", "")))
	h.DB.Return(backendtest.OpSelect, schema.Likes, `[{"post_id":1}]`)

	saved, err := repo.SavedPosts(context.Background(), "u1", domain.Page{})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, int64(2), saved[0].ID)
	assert.Equal(t, int64(1), saved[1].ID)
	assert.True(t, saved[0].IsSaved)
	assert.True(t, saved[1].IsSaved)
	assert.False(t, saved[0].IsLiked)
	assert.True(t, saved[1].IsLiked)

	savedQuery := h.DB.Calls(backendtest.OpSelect, schema.SavedPosts)[0].Query
	assert.Equal(t, []backend.Order{{Column: "created_at", Desc: true}}, savedQuery.Order)
}

func TestFallbackQueryZeroesCounts(t *testing.T) {
	repo, h := newRepo(t)
	h.DB.On(backendtest.OpSelect, schema.Posts, func(c backendtest.Call) (any, error) {
		if backendtest.HasEmbed(c.Query, "likes") {
			return nil, &backend.Error{Message: "no relationship", Code: backend.CodeUnsupportedRelationship}
		}
		return `[{"id":1,"content":"a","community_id":5,"user_id":"u2"},{"id":2,"content":"b","community_id":5,"user_id":"u2"}]`, nil
	})

	feed, err := repo.PublicFeed(context.Background(), domain.Page{})
	require.NoError(t, err)
	require.Len(t, feed, 2)
	for _, p := range feed {
		assert.Zero(t, p.LikesCount)
		assert.Zero(t, p.CommentsCount)
	}
	calls := h.DB.Calls(backendtest.OpSelect, schema.Posts)
	require.Len(t, calls, 2)
	assert.False(t, backendtest.HasEmbed(calls[1].Query, "comments"))
	assert.True(t, backendtest.HasEmbed(calls[1].Query, "profiles"))
}

func TestOtherBackendErrorsAreNotRetried(t *testing.T) {
	repo, h := newRepo(t)
	boom := &backend.Error{Message: "timeout", Code: "57014"}
	h.DB.Fail(backendtest.OpSelect, schema.Posts, boom)

	_, err := repo.PublicFeed(context.Background(), domain.Page{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, h.DB.Calls(backendtest.OpSelect, schema.Posts), 1)
	assert.False(t, h.Cached(policy.PublicFeed(domain.FirstPage)))
}

func TestPendingPostsFiltersStatus(t *testing.T) {
	repo, h := newRepo(t)
	h.DB.Return(backendtest.OpSelect, schema.Posts, rows(postJSON(4, "u2", "")))

	posts, err := repo.PendingPosts(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	v, ok := backendtest.FilterValue(h.DB.Calls(backendtest.OpSelect, schema.Posts)[0].Query, "moderation_status")
	require.True(t, ok)
	assert.Equal(t, "pending", v)
}

func TestLikePostIsIdempotentUpsert(t *testing.T) {
	repo, h := newRepo(t)
	require.NoError(t, repo.LikePost(context.Background(), 3, "u1"))

	calls := h.DB.Calls(backendtest.OpUpsert, schema.Likes)
	require.Len(t, calls, 1)
	assert.Equal(t, backend.UpsertOptions{OnConflict: []string{"post_id", "user_id"}, IgnoreDuplicates: true}, calls[0].Upsert)
	assert.Equal(t, backend.Row{"post_id": int64(3), "user_id": "u1"}, calls[0].Values)
}

func TestBookmarkInvalidatesViewerLists(t *testing.T) {
	ctx := context.Background()
	repo, h := newRepo(t)
	keys := []string{
		policy.SavedPostsByUser("u1", domain.FirstPage),
		policy.FeedByUser("u1", domain.FirstPage),
		policy.PostsByUser("u1", domain.FirstPage),
	}
	other := policy.FeedByUser("u1", domain.Page{Number: 1})
	for _, k := range append(keys, other) {
		h.Seed(t, k, []domain.Post{})
	}

	require.NoError(t, repo.BookmarkPost(ctx, 3, "u1"))
	for _, k := range keys {
		assert.False(t, h.Cached(k), k)
	}
	assert.True(t, h.Cached(other))

	for _, k := range keys {
		h.Seed(t, k, []domain.Post{})
	}
	require.NoError(t, repo.UnbookmarkPost(ctx, 3, "u1"))
	for _, k := range keys {
		assert.False(t, h.Cached(k), k)
	}
	assert.Len(t, h.DB.Calls(backendtest.OpDelete, schema.SavedPosts), 1)
}

func TestBookmarkFailureKeepsCache(t *testing.T) {
	repo, h := newRepo(t)
	key := policy.SavedPostsByUser("u1", domain.FirstPage)
	h.Seed(t, key, []domain.Post{})
	h.DB.Fail(backendtest.OpInsert, schema.SavedPosts, &backend.Error{Message: "dup", Code: backend.CodeUniqueViolation})

	err := repo.BookmarkPost(context.Background(), 3, "u1")
	assert.True(t, backend.HasCode(err, backend.CodeUniqueViolation))
	assert.True(t, h.Cached(key))
}

func TestCommittedWritesSurviveCacheOutage(t *testing.T) {
	ctx := context.Background()
	repo, h := newRepo(t)
	key := policy.SavedPostsByUser("u1", domain.FirstPage)
	h.Seed(t, key, []domain.Post{})
	h.FailCacheWrites(errors.New("kv down"))

	require.NoError(t, repo.BookmarkPost(ctx, 3, "u1"))
	require.NoError(t, repo.UnbookmarkPost(ctx, 3, "u1"))
	require.NoError(t, repo.UpdateModerationStatus(ctx, 1, domain.ModerationApproved))

	scriptCreatedPost(h, 10)
	created, err := repo.SavePost(ctx, domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID)

	assert.True(t, h.Cached(key))
	assert.Len(t, h.DB.Calls(backendtest.OpInsert, schema.SavedPosts), 1)
	assert.Contains(t, h.Logs.String(), `"event":"invalidate_failed"`)
	assert.Contains(t, h.Logs.String(), key)
}

func TestIsLikedAndCounts(t *testing.T) {
	ctx := context.Background()
	repo, h := newRepo(t)
	h.DB.Return(backendtest.OpMaybeSingle, schema.Likes, `{"id":1}`)
	h.DB.Return(backendtest.OpCount, schema.SavedPosts, 4)

	liked, err := repo.IsLiked(ctx, 1, "u1")
	require.NoError(t, err)
	assert.True(t, liked)

	saved, err := repo.IsSaved(ctx, 1, "u1")
	require.NoError(t, err)
	assert.False(t, saved)

	n, err := repo.SavedPostsCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestModerationUpdatesClearPublicFeed(t *testing.T) {
	ctx := context.Background()
	repo, h := newRepo(t)
	key := policy.PublicFeed(domain.FirstPage)

	err := repo.UpdateModerationStatus(ctx, 1, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	h.Seed(t, key, []domain.Post{})
	require.NoError(t, repo.UpdateModerationStatus(ctx, 1, domain.ModerationRejected))
	assert.False(t, h.Cached(key))

	h.Seed(t, key, []domain.Post{})
	require.NoError(t, repo.MarkPostForReview(ctx, 1))
	assert.False(t, h.Cached(key))

	updates := h.DB.Calls(backendtest.OpUpdate, schema.Posts)
	require.Len(t, updates, 2)
	assert.Equal(t, "rejected", updates[0].Values["moderation_status"])
	assert.Equal(t, "pending", updates[1].Values["moderation_status"])
}

func scriptCreatedPost(h *repotest.Harness, id int64) {
	h.DB.Return(backendtest.OpInsert, schema.Posts, postJSON(id, "u1", ""))
}

func TestSavePostWithoutImage(t *testing.T) {
	repo, h := newRepo(t)
	scriptCreatedPost(h, 10)
	h.Seed(t, policy.FeedByUser("u1", domain.FirstPage), []domain.Post{})

	created, err := repo.SavePost(context.Background(), domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID)
	assert.False(t, h.Cached(policy.FeedByUser("u1", domain.FirstPage)))
	assert.Empty(t, h.DB.Calls(backendtest.OpUpdate, schema.Posts))

	insert := h.DB.Calls(backendtest.OpInsert, schema.Posts)[0]
	assert.Nil(t, insert.Values["image_url"])
	assert.True(t, backendtest.HasEmbed(insert.Query, "likes"))
}

func TestSavePostUploadsAndAttachesImage(t *testing.T) {
	repo, h := newRepo(t)
	scriptCreatedPost(h, 10)
	h.DB.On(backendtest.OpUpdate, schema.Posts, func(c backendtest.Call) (any, error) {
		return postJSON(10, "u1", c.Values["image_url"].(string)), nil
	})

	created, err := repo.SavePost(context.Background(),
		domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"},
		&domain.ImageUpload{Data: []byte("img"), Extension: "jpeg"})
	require.NoError(t, err)

	_, ok := h.Blobs.Get(blob.BucketPostImages, "u1/10.jpg")
	assert.True(t, ok)
	require.NotNil(t, created.ImageURL)
	assert.Equal(t, blob.DefaultMemoryBaseURL+"/public/post-images/u1/10.jpg", *created.ImageURL)

	update := h.DB.Calls(backendtest.OpUpdate, schema.Posts)[0]
	v, _ := backendtest.FilterValue(update.Query, "id")
	assert.Equal(t, int64(10), v)
	assert.Empty(t, h.DB.Calls(backendtest.OpDelete, schema.Posts))
}

func TestSavePostRollsBackWhenUploadFails(t *testing.T) {
	repo, h := newRepo(t)
	scriptCreatedPost(h, 10)
	uploadErr := errors.New("storage unavailable")
	h.Blobs.FailNext(blob.OpUpload, uploadErr)

	_, err := repo.SavePost(context.Background(),
		domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"},
		&domain.ImageUpload{Data: []byte("img"), Extension: "png"})
	assert.Same(t, uploadErr, err)

	deletes := h.DB.Calls(backendtest.OpDelete, schema.Posts)
	require.Len(t, deletes, 1)
	v, _ := backendtest.FilterValue(deletes[0].Query, "id")
	assert.Equal(t, int64(10), v)
	assert.Empty(t, h.DB.Calls(backendtest.OpUpdate, schema.Posts))
}

func TestSavePostRollsBackWhenAttachFails(t *testing.T) {
	repo, h := newRepo(t)
	scriptCreatedPost(h, 10)
	updateErr := &backend.Error{Message: "permission denied", Code: "42501"}
	h.DB.Fail(backendtest.OpUpdate, schema.Posts, updateErr)

	_, err := repo.SavePost(context.Background(),
		domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"},
		&domain.ImageUpload{Data: []byte("img"), Extension: "png"})
	assert.Same(t, updateErr, err)

	assert.Empty(t, h.Blobs.List(blob.BucketPostImages), "uploaded blob removed")
	assert.Len(t, h.DB.Calls(backendtest.OpDelete, schema.Posts), 1)
}

func TestSavePostRollbackFailureIsLoggedNotReturned(t *testing.T) {
	repo, h := newRepo(t)
	scriptCreatedPost(h, 10)
	updateErr := errors.New("update failed")
	h.DB.Fail(backendtest.OpUpdate, schema.Posts, updateErr)
	h.DB.Fail(backendtest.OpDelete, schema.Posts, errors.New("delete failed"))
	h.Blobs.FailNext(blob.OpRemove, errors.New("remove failed"))

	_, err := repo.SavePost(context.Background(),
		domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"},
		&domain.ImageUpload{Data: []byte("img"), Extension: "png"})
	assert.Same(t, updateErr, err)

	logs := h.Logs.String()
	assert.Contains(t, logs, `"event":"rollback_failed"`)
	assert.Contains(t, logs, `"step":"remove_post_image"`)
	assert.Contains(t, logs, `"step":"delete_post"`)
	assert.Contains(t, logs, `"component":"repository.post"`)
}

func TestSavePostEmptyImageRollsBack(t *testing.T) {
	repo, h := newRepo(t)
	scriptCreatedPost(h, 10)

	_, err := repo.SavePost(context.Background(),
		domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"},
		&domain.ImageUpload{Extension: "png"})
	assert.ErrorIs(t, err, domain.ErrEmptyUpload)
	assert.Len(t, h.DB.Calls(backendtest.OpDelete, schema.Posts), 1)
}

func TestSavePostWithoutReturnedRow(t *testing.T) {
	repo, _ := newRepo(t)
	_, err := repo.SavePost(context.Background(), domain.Post{Content: "hi", CommunityID: 5, UserID: "u1"}, nil)
	assert.ErrorIs(t, err, domain.ErrNoData)
}
