package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/app"
	"socialcore/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("BLOB_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
		cmd.SetArgs(nil)
	})
	err := cmd.Execute()
	return out.String(), err
}

func TestCacheClearWithoutDatabase(t *testing.T) {
	out, err := run(t, "cache", "clear", "topics", "user:u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 2 keys")
}

func TestCacheClearNeedsKeys(t *testing.T) {
	_, err := run(t, "cache", "clear")
	require.EqualError(t, err, "no keys given")
}

func TestRepositoryCommandsNeedDatabase(t *testing.T) {
	_, err := run(t, "topics")
	require.ErrorIs(t, err, app.ErrNoDatabase)
}

func TestFeedNeedsUserUnlessPublic(t *testing.T) {
	_, err := run(t, "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user id is required")
}

func TestCommentsNeedPostUnlessUser(t *testing.T) {
	_, err := run(t, "comments")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post id is required")

	_, err = run(t, "comments", "--user", "")
	require.Error(t, err)
}

func TestModerationRejectsBadCommunityID(t *testing.T) {
	_, err := run(t, "moderation", "logs", "abc")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = run(t, "moderation", "moderators", "5")
	require.ErrorIs(t, err, app.ErrNoDatabase)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "socialctl dev")
}

func TestParseConfigArg(t *testing.T) {
	list := parseConfigArg(`["spam","scam"]`)
	items, ok := list.AsStringList()
	require.True(t, ok)
	assert.Equal(t, []string{"spam", "scam"}, items)

	text := parseConfigArg("2024-06")
	s, ok := text.AsString()
	require.True(t, ok)
	assert.Equal(t, "2024-06", s)

	assert.Equal(t, domain.ConfigBool, parseConfigArg("true").Kind())
}
