// Package storetest provides an in-process Redis-backed KeyStore for tests.
package storetest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// New starts a miniredis server for the lifetime of t and returns a store on it.
// Use the returned server to FastForward time or to simulate an outage with Close.
func New(t testing.TB) (*store.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return store.NewRedisStoreFromClient(client), mr
}
