package realtime_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/subhodeep2005s/realtime-chat/internal/models"
	"github.com/subhodeep2005s/realtime-chat/internal/realtime"
)

func newNATSTransport(t *testing.T) *realtime.NATSTransport {
	t.Helper()
	srv := natstest.RunRandClientPortServer()
	t.Cleanup(srv.Shutdown)

	transport, err := realtime.NewNATSTransport(srv.ClientURL(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })
	return transport
}

func noEvent(t *testing.T, sub realtime.Subscription) {
	t.Helper()
	select {
	case env := <-sub.Events():
		t.Fatalf("unexpected event: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubject(t *testing.T) {
	require.Equal(t, "room.abc123", realtime.Subject("abc123"))
}

func TestNATSTransport_DeliversFanoutEvents(t *testing.T) {
	transport := newNATSTransport(t)
	ctx := context.Background()

	sub, err := transport.Subscribe(ctx, "abc123")
	require.NoError(t, err)
	defer sub.Close()

	other, err := transport.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer other.Close()

	// Subscribe returns after the server has confirmed the interest
	f := realtime.NewFanout(transport, zerolog.Nop())
	f.MessageSent(ctx, models.Message{ID: "01J", Sender: "alice", Text: "hi", RoomID: "abc123", Token: "tok1"})
	f.RoomDestroyed(ctx, "abc123")

	env := receive(t, sub)
	require.Equal(t, realtime.EventMessage, env.Event)
	require.Equal(t, "abc123", env.Channel)

	var msg models.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.Equal(t, "hi", msg.Text)
	require.Empty(t, msg.Token)

	env = receive(t, sub)
	require.Equal(t, realtime.EventDestroy, env.Event)
	require.JSONEq(t, `{"isDestroyed":true}`, string(env.Data))

	noEvent(t, other)
}

func TestNATSTransport_CloseStopsDelivery(t *testing.T) {
	transport := newNATSTransport(t)
	ctx := context.Background()

	sub, err := transport.Subscribe(ctx, "abc123")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, transport.Publish(ctx, "abc123", realtime.EventDestroy, realtime.DestroyPayload{IsDestroyed: true}))
	noEvent(t, sub)
}

func TestNATSTransport_ContextCancelClosesSubscription(t *testing.T) {
	transport := newNATSTransport(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := transport.Subscribe(ctx, "abc123")
	require.NoError(t, err)
	cancel()

	// The watcher unsubscribes asynchronously; a later close is a no-op
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sub.Close())

	require.NoError(t, transport.Publish(context.Background(), "abc123", realtime.EventDestroy, realtime.DestroyPayload{IsDestroyed: true}))
	noEvent(t, sub)
}

func TestNATSTransport_CloseReleasesBlockedSubscriber(t *testing.T) {
	transport := newNATSTransport(t)
	ctx := context.Background()

	sub, err := transport.Subscribe(ctx, "abc123")
	require.NoError(t, err)

	// Nobody reads, so the delivery callback blocks once the buffer is full
	for i := 0; i < 64; i++ {
		require.NoError(t, transport.Publish(ctx, "abc123", realtime.EventMessage, models.Message{ID: "m", RoomID: "abc123"}))
	}
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, sub.Close())

	done := make(chan error, 1)
	go func() { done <- transport.Close() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish")
	}

	// Closing again is harmless
	require.NoError(t, transport.Close())
	require.Error(t, transport.Publish(ctx, "abc123", realtime.EventMessage, models.Message{}))
}
