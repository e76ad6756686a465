package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actor struct {
	ID string `json:"id"`
}

func TestOneDecodesObjectOrArray(t *testing.T) {
	var row struct {
		A One[actor] `json:"a"`
		B One[actor] `json:"b"`
		C One[actor] `json:"c"`
		D One[actor] `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"id":"x"},"b":[{"id":"y"}],"c":[],"d":null}`), &row))
	require.NotNil(t, row.A.Value)
	assert.Equal(t, "x", row.A.Value.ID)
	require.NotNil(t, row.B.Value)
	assert.Equal(t, "y", row.B.Value.ID)
	assert.Nil(t, row.C.Value)
	assert.Nil(t, row.D.Value)
}

func TestCountValue(t *testing.T) {
	var c Count
	assert.Equal(t, 0, c.Value())
	require.NoError(t, json.Unmarshal([]byte(`[{"count":4}]`), &c))
	assert.Equal(t, 4, c.Value())
}
