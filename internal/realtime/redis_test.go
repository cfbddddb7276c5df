package realtime_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/subhodeep2005s/realtime-chat/internal/models"
	"github.com/subhodeep2005s/realtime-chat/internal/realtime"
	"github.com/subhodeep2005s/realtime-chat/internal/store/storetest"
)

func receive(t *testing.T, sub realtime.Subscription) realtime.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return realtime.Envelope{}
	}
}

func TestRedisTransport_DeliversFanoutEvents(t *testing.T) {
	keys, _ := storetest.New(t)
	transport := realtime.NewRedisTransport(keys.Client(), zerolog.Nop())
	ctx := context.Background()

	sub, err := transport.Subscribe(ctx, "abc123")
	require.NoError(t, err)
	defer sub.Close()

	other, err := transport.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer other.Close()

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

	select {
	case env := <-other.Events():
		t.Fatalf("unexpected event on other channel: %+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisTransport_CloseEndsEvents(t *testing.T) {
	keys, _ := storetest.New(t)
	transport := realtime.NewRedisTransport(keys.Client(), zerolog.Nop())

	sub, err := transport.Subscribe(context.Background(), "abc123")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}
