package cache

import "context"

// KV is the byte-oriented storage a Store persists entries in. Get reports
// found=false for a missing key. Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
