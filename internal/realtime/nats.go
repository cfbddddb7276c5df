package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
)

// NATSTransport publishes envelopes on the subject room.<roomID>.
type NATSTransport struct {
	nc     *nats.Conn
	closed chan struct{}
	logger zerolog.Logger
}

// NewNATSTransport connects to the NATS server at url.
func NewNATSTransport(url string, logger zerolog.Logger) (*NATSTransport, error) {
	closed := make(chan struct{})
	nc, err := nats.Connect(url,
		nats.Name("realtime-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSTransport{nc: nc, closed: closed, logger: logger}, nil
}

// Subject returns the NATS subject of a room channel.
func Subject(channel string) string {
	return "room." + channel
}

// Publish sends an event on the room's subject.
func (t *NATSTransport) Publish(_ context.Context, channel, event string, payload any) error {
	data, err := encode(channel, event, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPublishFailed, err)
	}
	if err := t.nc.Publish(Subject(channel), data); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPublishFailed, err)
	}
	return nil
}

// Subscribe listens on the room's subject until the subscription is closed or ctx ends.
func (t *NATSTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := &natsSubscription{
		events: make(chan Envelope, 16),
		done:   make(chan struct{}),
	}

	ns, err := t.nc.Subscribe(Subject(channel), func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			t.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed realtime envelope")
			return
		}
		select {
		case sub.events <- env:
		case <-sub.done:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	if err := t.nc.Flush(); err != nil {
		_ = ns.Unsubscribe()
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	sub.ns = ns

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Close drains the connection and waits until it is closed. Open
// subscriptions must be closed first or their pending callbacks hold the drain.
func (t *NATSTransport) Close() error {
	if err := t.nc.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return err
	}
	<-t.closed
	return nil
}

type natsSubscription struct {
	ns     *nats.Subscription
	events chan Envelope
	done   chan struct{}
	once   sync.Once
}

func (s *natsSubscription) Events() <-chan Envelope {
	return s.events
}

// Close stops delivery. The events channel is left open; readers select on their own context.
func (s *natsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ns.Unsubscribe()
	})
	return err
}
