package store

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/metrics"
)

// RedisStore implements KeyStore on top of Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	client.AddHook(latencyHook{})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	client.AddHook(latencyHook{})
	return &RedisStore{client: client}
}

// Client exposes the underlying client for the rate limiter and the Redis realtime transport.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return unavailable(s.client.Ping(ctx).Err())
}

// SetHashFields writes fields into the hash at key.
func (s *RedisStore) SetHashFields(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return unavailable(s.client.HSet(ctx, key, fields).Err())
}

// GetHashFields returns every field of the hash at key, or an empty map if it is absent.
func (s *RedisStore) GetHashFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return fields, nil
}

// HashFieldExists reports whether field is set in the hash at key.
func (s *RedisStore) HashFieldExists(ctx context.Context, key, field string) (bool, error) {
	ok, err := s.client.HExists(ctx, key, field).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// HashLen returns the number of fields in the hash at key.
func (s *RedisStore) HashLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// DeleteHashFields removes fields from the hash at key.
func (s *RedisStore) DeleteHashFields(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return unavailable(s.client.HDel(ctx, key, fields...).Err())
}

// Expire sets the key's remaining lifetime. A non-positive value deletes the key.
func (s *RedisStore) Expire(ctx context.Context, key string, seconds int64) error {
	if seconds <= 0 {
		return unavailable(s.client.Del(ctx, key).Err())
	}
	return unavailable(s.client.Expire(ctx, key, time.Duration(seconds)*time.Second).Err())
}

// TTL returns the key's remaining lifetime in seconds, TTLMissing or TTLNoExpiry.
func (s *RedisStore) TTL(ctx context.Context, key string) (int64, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	// go-redis reports -1 and -2 as raw durations, not seconds
	if d < 0 {
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}

// Exists reports whether key exists.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Delete removes keys. Absent keys are ignored.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return unavailable(s.client.Del(ctx, keys...).Err())
}

// Append pushes value onto the tail of the list at key.
func (s *RedisStore) Append(ctx context.Context, key string, value []byte) error {
	return unavailable(s.client.RPush(ctx, key, value).Err())
}

// Range returns list elements between start and stop inclusive (negative indexes count from the tail).
func (s *RedisStore) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	results, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	values := make([][]byte, len(results))
	for i, r := range results {
		values[i] = []byte(r)
	}
	return values, nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
}

// latencyHook records per-command latency.
type latencyHook struct{}

func (latencyHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (latencyHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		metrics.RedisLatency.WithLabelValues(strings.ToLower(cmd.Name())).Observe(time.Since(start).Seconds())
		return err
	}
}

func (latencyHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		metrics.RedisLatency.WithLabelValues("pipeline").Observe(time.Since(start).Seconds())
		return err
	}
}
