package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuildersDoNotAlias(t *testing.T) {
	base := From("posts").Select("*").Embed("profiles", "name")
	a := base.Where(Eq("user_id", "u1")).EmbedCount("likes")
	b := base.Where(Eq("community_id", 3))

	assert.Len(t, base.Filters, 0)
	assert.Len(t, base.Embeds, 1)
	require.Len(t, a.Filters, 1)
	require.Len(t, b.Filters, 1)
	assert.Equal(t, "user_id", a.Filters[0].Column)
	assert.Equal(t, "community_id", b.Filters[0].Column)
	assert.Len(t, a.Embeds, 2)
	assert.Len(t, b.Embeds, 1)
}

func TestRangeAndIn(t *testing.T) {
	q := From("posts").Range(20, 39)
	assert.Equal(t, 20, q.Offset)
	assert.Equal(t, 20, q.Limit)

	f := In("id", []int64{3, 1})
	assert.Equal(t, OpIn, f.Op)
	assert.Equal(t, []any{int64(3), int64(1)}, f.Value)
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("load feed: %w", &Error{Message: "relationship missing", Code: CodeUnsupportedRelationship})
	assert.True(t, HasCode(err, CodeUnsupportedRelationship))
	assert.False(t, HasCode(err, CodeNoRows))
	assert.False(t, HasCode(errors.New("plain"), CodeNoRows))

	assert.ErrorIs(t, &Error{Message: "0 rows", Code: CodeNoRows}, ErrNoRows)
	assert.Equal(t, "boom (42P01): relation missing", (&Error{Message: "boom", Code: "42P01", Details: "relation missing"}).Error())
}

type stubClient struct {
	Client
	selectRaw string
	singleRaw string
	err       error
}

func (s stubClient) Select(context.Context, Query) (json.RawMessage, error) {
	return json.RawMessage(s.selectRaw), s.err
}

func (s stubClient) MaybeSingle(context.Context, Query) (json.RawMessage, error) {
	if s.singleRaw == "" {
		return nil, s.err
	}
	return json.RawMessage(s.singleRaw), s.err
}

type idRow struct {
	ID int64 `json:"id"`
}

func TestDecodeHelpers(t *testing.T) {
	ctx := context.Background()

	rows, err := SelectInto[idRow](ctx, stubClient{selectRaw: `[{"id":1},{"id":2}]`}, From("t"))
	require.NoError(t, err)
	assert.Equal(t, []idRow{{1}, {2}}, rows)

	rows, err = SelectInto[idRow](ctx, stubClient{selectRaw: `null`}, From("t"))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	one, err := MaybeSingleInto[idRow](ctx, stubClient{}, From("t"))
	require.NoError(t, err)
	assert.Nil(t, one)

	_, err = SingleInto[idRow](ctx, stubClient{}, From("t"))
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = SelectInto[idRow](ctx, stubClient{selectRaw: `{"id":"x"}`}, From("t"))
	assert.True(t, HasCode(err, CodeDecode))

	boom := &Error{Message: "down", Code: "08006"}
	_, err = SelectInto[idRow](ctx, stubClient{err: boom}, From("t"))
	assert.ErrorIs(t, err, boom)
}
