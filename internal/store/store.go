package store

import (
	"context"
)

// TTL sentinels reported by KeyStore.TTL, matching Redis semantics.
const (
	TTLMissing  int64 = -2 // key does not exist
	TTLNoExpiry int64 = -1 // key exists without an expiry
)

// KeyStore is the subset of a key-value store the chat core depends on.
// Every key has its own expiry; errors from the backing store are wrapped
// with apperr.ErrStoreUnavailable.
type KeyStore interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	// Hash operations
	SetHashFields(ctx context.Context, key string, fields map[string]any) error
	GetHashFields(ctx context.Context, key string) (map[string]string, error)
	HashFieldExists(ctx context.Context, key, field string) (bool, error)
	HashLen(ctx context.Context, key string) (int64, error)
	DeleteHashFields(ctx context.Context, key string, fields ...string) error

	// Expiry. Expire with seconds <= 0 removes the key immediately.
	Expire(ctx context.Context, key string, seconds int64) error
	TTL(ctx context.Context, key string) (int64, error)

	// Key operations. Deleting absent keys is a no-op.
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error

	// List operations
	Append(ctx context.Context, key string, value []byte) error
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}
