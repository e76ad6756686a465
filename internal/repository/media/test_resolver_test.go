package media

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/blob"
	"socialcore/internal/domain"
)

func ptr(s string) *string { return &s }

func TestPublicResolution(t *testing.T) {
	r := NewResolver(blob.NewMemoryStore())

	assert.Nil(t, r.Public(blob.BucketPostImages, nil))
	assert.Nil(t, r.Public(blob.BucketPostImages, ptr("  ")))
	assert.Equal(t, "https://cdn.example.com/a.jpg", *r.Public(blob.BucketPostImages, ptr("https://cdn.example.com/a.jpg")))
	assert.Equal(t, blob.DefaultMemoryBaseURL+"/public/post-images/u1/1.jpg", *r.Public(blob.BucketPostImages, ptr("u1/1.jpg")))
}

func TestSignedResolutionDegradesToNil(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	r := NewResolver(store)

	assert.Nil(t, r.Signed(ctx, blob.BucketCommunityImages, ptr("c/missing.png")))

	_, err := store.Upload(ctx, blob.BucketCommunityImages, "c/1.png", []byte("x"), blob.UploadOptions{})
	require.NoError(t, err)
	u := r.Signed(ctx, blob.BucketCommunityImages, ptr("c/1.png"))
	require.NotNil(t, u)
	assert.Contains(t, *u, "/sign/community-images/c/1.png")

	store.FailNext(blob.OpSign, errors.New("signing down"))
	again := r.Signed(ctx, blob.BucketCommunityImages, ptr("c/1.png"))
	require.NotNil(t, again, "memoised url served without signing")
	assert.Equal(t, *u, *again)

	remote := "http://example.com/x.png"
	assert.Equal(t, remote, *r.Signed(ctx, blob.BucketCommunityImages, &remote))
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	r := NewResolver(blob.NewMemoryStore())
	_, err := r.Upload(context.Background(), blob.BucketPostImages, "u/1.jpg", domain.ImageUpload{})
	assert.ErrorIs(t, err, domain.ErrEmptyUpload)
}

func TestUploadSetsContentType(t *testing.T) {
	store := blob.NewMemoryStore()
	r := NewResolver(store)
	path, err := r.Upload(context.Background(), blob.BucketPostImages, ObjectPath("u1", "9", "JPEG"), domain.ImageUpload{Data: []byte("x"), Extension: "jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "u1/9.jpg", path)
	_, ok := store.Get(blob.BucketPostImages, "u1/9.jpg")
	assert.True(t, ok)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType(domain.ImageUpload{Extension: "jpeg"}))
	assert.Equal(t, "image/png", ContentType(domain.ImageUpload{Extension: ".PNG"}))
	assert.Equal(t, "image/webp", ContentType(domain.ImageUpload{Extension: "png", ContentType: "image/webp"}))
	assert.Equal(t, "jpg", NormalizeExtension(""))
}

func TestPathFromPublicURL(t *testing.T) {
	r := NewResolver(blob.NewMemoryStore())
	url := *r.Public(blob.BucketUserAvatars, ptr("u1/avatar 1.png"))

	path, ok := r.PathFromPublicURL(blob.BucketUserAvatars, url+"?v=3")
	require.True(t, ok)
	assert.Equal(t, "u1/avatar 1.png", path)

	_, ok = r.PathFromPublicURL(blob.BucketUserAvatars, "https://elsewhere.example.com/u1/a.png")
	assert.False(t, ok)

	path, ok = r.PathFromPublicURL(blob.BucketUserAvatars, "u1/raw.png")
	assert.True(t, ok)
	assert.Equal(t, "u1/raw.png", path)
}

func TestCompensateLogsAndSwallows(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawCancelled bool
	Compensate(ctx, logger, "delete_post", func(ctx context.Context) error {
		sawCancelled = ctx.Err() != nil
		return errors.New("delete failed")
	})
	assert.False(t, sawCancelled)
	assert.Contains(t, buf.String(), `"event":"rollback_failed"`)
	assert.Contains(t, buf.String(), `"step":"delete_post"`)
	assert.Contains(t, buf.String(), "delete failed")

	buf.Reset()
	Compensate(ctx, logger, "noop", func(context.Context) error { return nil })
	assert.Empty(t, buf.String())
}
