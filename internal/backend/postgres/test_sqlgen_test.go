package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/backend"
)

func newGen() sqlGen {
	return sqlGen{relations: DefaultRelations()}
}

func TestSelectSQLRendersEmbedsAndPaging(t *testing.T) {
	q := backend.From("posts").
		Select("*").
		Embed("communities", "title", "image_url").
		EmbedCount("likes").
		Where(backend.Eq("community_id", int64(7))).
		OrderBy("created_at", true).
		Range(20, 39)

	sql, args, err := newGen().selectSQL(q)
	require.NoError(t, err)

	assert.Contains(t, sql, `SELECT to_jsonb(r) FROM (SELECT t.*`)
	assert.Contains(t, sql, `(SELECT jsonb_build_object('title', e."title", 'image_url', e."image_url") FROM "communities" AS e WHERE e."id" = t."community_id" LIMIT 1) AS "communities"`)
	assert.Contains(t, sql, `(SELECT jsonb_build_array(jsonb_build_object('count', count(*))) FROM "likes" AS e WHERE e."post_id" = t."id") AS "likes"`)
	assert.Contains(t, sql, `FROM "posts" AS t WHERE t."community_id" = $1`)
	assert.Contains(t, sql, `ORDER BY t."created_at" DESC LIMIT 20 OFFSET 20`)
	assert.Equal(t, []any{int64(7)}, args)
}

func TestSelectSQLManyEmbedAggregates(t *testing.T) {
	sql, _, err := newGen().selectSQL(backend.From("communities").Embed("subscriptions", "user_id"))
	require.NoError(t, err)
	assert.Contains(t, sql, `coalesce(jsonb_agg(jsonb_build_object('user_id', e."user_id")), '[]'::jsonb)`)
}

func TestSelectSQLModeratorEmbedsJoinProfiles(t *testing.T) {
	sql, _, err := newGen().selectSQL(backend.From("moderation_logs").Select("*").Embed("profiles", "name"))
	require.NoError(t, err)
	assert.Contains(t, sql, `FROM "profiles" AS e WHERE e."id" = t."moderator_id" LIMIT 1) AS "profiles"`)

	sql, _, err = newGen().selectSQL(backend.From("comments").Select("*").Embed("profiles", "name"))
	require.NoError(t, err)
	assert.Contains(t, sql, `FROM "profiles" AS e WHERE e."id" = t."user_id" LIMIT 1) AS "profiles"`)
}

func TestSelectSQLUnknownRelation(t *testing.T) {
	_, _, err := newGen().selectSQL(backend.From("posts").Embed("reactions"))
	require.Error(t, err)
	assert.True(t, backend.HasCode(err, backend.CodeUnsupportedRelationship))
}

func TestSelectSQLFilters(t *testing.T) {
	q := backend.From("posts").Where(
		backend.Or(
			backend.In("community_id", []int64{1, 2}),
			backend.Eq("user_id", "u1"),
		),
		backend.ILike("content", "%go%"),
		backend.IsNull("image_url"),
		backend.Neq("moderation_status", "rejected"),
	)
	sql, args, err := newGen().selectSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sql, `(t."community_id" IN ($1,$2) OR t."user_id" = $3)`)
	assert.Contains(t, sql, `t."content" ILIKE $4`)
	assert.Contains(t, sql, `t."image_url" IS NULL`)
	assert.Contains(t, sql, `t."moderation_status" <> $5`)
	assert.Equal(t, []any{int64(1), int64(2), "u1", "%go%", "rejected"}, args)
}

func TestEmptyInMatchesNothing(t *testing.T) {
	sql, args, err := newGen().selectSQL(backend.From("posts").Where(backend.In("id", []int64{})))
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE false")
	assert.Empty(t, args)
}

func TestInvalidIdentifierRejected(t *testing.T) {
	_, _, err := newGen().selectSQL(backend.From("posts; drop table posts"))
	assert.Error(t, err)
	_, _, err = newGen().selectSQL(backend.From("posts").Where(backend.Eq(`id" OR 1=1 --`, 1)))
	assert.Error(t, err)
}

func TestInsertSQLWrapsReturning(t *testing.T) {
	returning := backend.From("posts").Embed("profiles", "name")
	sql, args, err := newGen().insertSQL("posts", backend.Row{"user_id": "u1", "content": "hi"}, nil, returning)
	require.NoError(t, err)
	assert.Contains(t, sql, `WITH ins AS (INSERT INTO "posts" ("content","user_id") VALUES ($1,$2) RETURNING *)`)
	assert.Contains(t, sql, `FROM ins AS t LIMIT 1`)
	assert.Contains(t, sql, `AS "profiles"`)
	assert.Equal(t, []any{"hi", "u1"}, args)
}

func TestUpsertSQLConflictModes(t *testing.T) {
	g := newGen()
	sql, _, err := g.insertSQL("likes", backend.Row{"post_id": 1, "user_id": "u"},
		&backend.UpsertOptions{OnConflict: []string{"post_id", "user_id"}, IgnoreDuplicates: true}, backend.From("likes"))
	require.NoError(t, err)
	assert.Contains(t, sql, `ON CONFLICT ("post_id", "user_id") DO NOTHING RETURNING *`)

	sql, _, err = g.insertSQL("feature_config", backend.Row{"key": "k", "value": "v"},
		&backend.UpsertOptions{OnConflict: []string{"key"}}, backend.From("feature_config"))
	require.NoError(t, err)
	assert.Contains(t, sql, `ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value" RETURNING *`)
}

func TestUpdateAndDeleteRequireFilters(t *testing.T) {
	g := newGen()
	_, _, err := g.updateSQL(backend.From("posts"), backend.Row{"content": "x"})
	assert.Error(t, err)
	_, _, err = g.deleteSQL(backend.From("posts"))
	assert.Error(t, err)

	sql, args, err := g.updateSQL(backend.From("posts").Where(backend.Eq("id", 3)), backend.Row{"image_url": "p.jpg"})
	require.NoError(t, err)
	assert.Contains(t, sql, `WITH upd AS (UPDATE "posts" AS t SET "image_url" = $1 WHERE t."id" = $2 RETURNING t.*)`)
	assert.Equal(t, []any{"p.jpg", 3}, args)

	sql, args, err = g.deleteSQL(backend.From("likes").Where(backend.Eq("post_id", 3), backend.Eq("user_id", "u")))
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "likes" AS t WHERE t."post_id" = $1 AND t."user_id" = $2`, sql)
	assert.Equal(t, []any{3, "u"}, args)
}

func TestRPCSQLUsesNamedArguments(t *testing.T) {
	sql, args, err := newGen().rpcSQL("get_popular_topics", map[string]any{"limit_count": 10})
	require.NoError(t, err)
	assert.Equal(t, `SELECT coalesce(jsonb_agg(to_jsonb(r)), '[]'::jsonb) FROM "get_popular_topics"("limit_count" => $1) AS r`, sql)
	assert.Equal(t, []any{10}, args)
}

func TestMapError(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "42883", Message: "function does not exist"})
	assert.True(t, backend.HasCode(err, backend.CodeUndefinedFunction))

	err = mapError(&pgconn.PgError{Code: "23505", Message: "duplicate key", Detail: "Key (id)=(1) exists"})
	assert.True(t, errors.Is(err, &backend.Error{Code: backend.CodeUniqueViolation}))

	plain := errors.New("boom")
	assert.Same(t, plain, mapError(plain))
	assert.NoError(t, mapError(nil))
}
