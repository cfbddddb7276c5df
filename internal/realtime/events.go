// Package realtime fans room events out to subscribers over a pub/sub transport.
package realtime

import (
	"context"
	"encoding/json"
)

// Event names emitted on a room's channel.
const (
	EventMessage = "chat.message"
	EventDestroy = "chat.destroy"
)

// Envelope is the wire form of an event on a room channel.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// DestroyPayload is the data of a chat.destroy event.
type DestroyPayload struct {
	IsDestroyed bool `json:"isDestroyed"`
}

// Publisher emits a named event to a channel. Delivery is at-least-once at best.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// Subscriber opens a stream of envelopes published to a channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Transport is a publisher that can also be subscribed to.
type Transport interface {
	Publisher
	Subscriber
	Close() error
}

// Subscription delivers envelopes until closed or until its context ends.
type Subscription interface {
	Events() <-chan Envelope
	Close() error
}

func encode(channel, event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Channel: channel, Data: data})
}
