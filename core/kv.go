package core

import (
	"context"
	"time"
)

// ErrKeyNotFound is returned by a KVStore when the key is absent or has expired.
var ErrKeyNotFound = NewError(ErrNotFound, "key not found")

// KVStore is a key-value store whose entries expire after their TTL.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	// Take returns the value and deletes the key in one step; of concurrent callers, only one gets the value.
	Take(ctx context.Context, key string) (string, error)
}
