package memory

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultKVEntries bounds a KV created without an explicit size.
const DefaultKVEntries = 4096

// KV is an in-process cache backend. Entries live until evicted by the LRU
// bound or the process exits.
type KV struct {
	items *lru.Cache[string, []byte]
}

func NewKV(maxEntries int) (*KV, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultKVEntries
	}
	items, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("init memory kv: %w", err)
	}
	return &KV{items: items}, nil
}

func (kv *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := kv.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (kv *KV) Set(_ context.Context, key string, value []byte) error {
	kv.items.Add(key, append([]byte(nil), value...))
	return nil
}

func (kv *KV) Delete(_ context.Context, key string) error {
	kv.items.Remove(key)
	return nil
}

func (kv *KV) Len() int {
	return kv.items.Len()
}

// Purge drops every entry.
func (kv *KV) Purge() {
	kv.items.Purge()
}
