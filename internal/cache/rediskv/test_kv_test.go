package rediskv

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAddr(t *testing.T) {
	_, err := New(Config{Addr: "  "})
	require.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	kv := NewWithClient(client, "socialcore:")
	assert.Equal(t, "socialcore:user:1", kv.key("user:1"))
	assert.Equal(t, "feed", NewWithClient(client, "").key("feed"))
}
