package featureconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcore/internal/backend"
	"socialcore/internal/backend/backendtest"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAllDecodesEveryValueShape(t *testing.T) {
	db := backendtest.New()
	db.Return(backendtest.OpSelect, schema.FeatureConfig, `[
		{"key":"a_list","value":["spam","scam"],"description":"terms"},
		{"key":"b_num","value":3},
		{"key":"c_null","value":null},
		{"key":"terms_url","value":"https://example.com/terms"}
	]`)

	entries, err := New(db).All(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 4)

	list, ok := entries[0].Value.AsStringList()
	require.True(t, ok)
	assert.Equal(t, []string{"spam", "scam"}, list)
	require.NotNil(t, entries[0].Description)
	assert.Equal(t, domain.ConfigNumber, entries[1].Value.Kind())
	assert.True(t, entries[2].Value.IsNull())
	assert.Nil(t, entries[3].Description)

	q := db.Calls(backendtest.OpSelect, schema.FeatureConfig)[0].Query
	assert.Equal(t, []backend.Order{{Column: "key"}}, q.Order)
}

func TestUpsertReplacesByKey(t *testing.T) {
	db := backendtest.New()
	db.Return(backendtest.OpUpsert, schema.FeatureConfig, `{"key":"terms_version","value":"v2","description":null}`)
	repo := New(db, WithClock(func() time.Time { return fixedNow }))

	entry, err := repo.Upsert(context.Background(), " terms_version ", domain.StringValue("v2"), nil)
	require.NoError(t, err)
	v, ok := entry.Value.AsString()
	require.True(t, ok)
	assert.Equal(t, "v2", v)

	call := db.Calls(backendtest.OpUpsert, schema.FeatureConfig)[0]
	assert.Equal(t, backend.UpsertOptions{OnConflict: []string{"key"}}, call.Upsert)
	assert.Equal(t, "terms_version", call.Values["key"])
	assert.Equal(t, fixedNow, call.Values["updated_at"])
}

func TestUpsertRequiresKey(t *testing.T) {
	db := backendtest.New()
	_, err := New(db).Upsert(context.Background(), "  ", domain.NullValue(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, db.AllCalls())
}

func TestUpsertWithoutReturnedRow(t *testing.T) {
	_, err := New(backendtest.New()).Upsert(context.Background(), "k", domain.BoolValue(true), nil)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestDeleteByKey(t *testing.T) {
	db := backendtest.New()
	require.NoError(t, New(db).Delete(context.Background(), "terms_url"))
	v, ok := backendtest.FilterValue(db.Calls(backendtest.OpDelete, schema.FeatureConfig)[0].Query, "key")
	require.True(t, ok)
	assert.Equal(t, "terms_url", v)
}
