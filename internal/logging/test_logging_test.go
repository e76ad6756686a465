package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	c := Component(logger, "cache")
	c.Warn().Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "cache", line["component"])
	assert.Contains(t, line, "time")
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(nil, "loud", "json")
	assert.Error(t, err)
	_, err = New(nil, "info", "xml")
	assert.Error(t, err)
}
