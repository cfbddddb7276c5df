package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
)

// RedisTransport publishes envelopes with PUBLISH on a channel named after the room.
type RedisTransport struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisTransport creates a transport over an existing Redis client.
func NewRedisTransport(client *redis.Client, logger zerolog.Logger) *RedisTransport {
	return &RedisTransport{client: client, logger: logger}
}

// Publish sends an event to every current subscriber of channel.
func (t *RedisTransport) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := encode(channel, event, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPublishFailed, err)
	}
	if err := t.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPublishFailed, err)
	}
	return nil
}

// Subscribe listens on channel. The subscription is confirmed before it is returned.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := t.client.Subscribe(ctx, channel)

	// Wait for the subscribe confirmation so no event published after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan Envelope, 16),
		done:   make(chan struct{}),
	}
	go sub.run(t.logger)
	return sub, nil
}

// Close is a no-op; the Redis client is owned by the store.
func (t *RedisTransport) Close() error {
	return nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Envelope
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) run(logger zerolog.Logger) {
	defer close(s.events)

	for msg := range s.ps.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed realtime envelope")
			continue
		}
		select {
		case s.events <- env:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan Envelope {
	return s.events
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
