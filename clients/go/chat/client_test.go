package chat_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/clients/go/chat"
	"github.com/subhodeep2005s/realtime-chat/internal/api"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
	"github.com/subhodeep2005s/realtime-chat/internal/handlers"
	"github.com/subhodeep2005s/realtime-chat/internal/messages"
	"github.com/subhodeep2005s/realtime-chat/internal/realtime"
	"github.com/subhodeep2005s/realtime-chat/internal/rooms"
	"github.com/subhodeep2005s/realtime-chat/internal/store/storetest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	keys, _ := storetest.New(t)
	logger := zerolog.Nop()

	transport := realtime.NewRedisTransport(keys.Client(), logger)
	fanout := realtime.NewFanout(transport, logger)
	m := rooms.NewManager(keys, fanout, 0, logger)
	hasher, err := crypto.NewTokenHasher("client-test")
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(api.NewRouter(handlers.Deps{
		Keys:       keys,
		Rooms:      m,
		Auth:       auth.NewAuthenticator(keys, hasher, m, auth.Options{}, logger),
		Messages:   messages.NewStore(keys, fanout, m, logger),
		Presence:   realtime.NewPresence(keys, m),
		Subscriber: transport,
		Logger:     logger,
	}, api.Options{}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *chat.Client {
	t.Helper()
	t.Setenv("CHAT_CONFIG", t.TempDir())
	return chat.NewClient(baseURL)
}

func TestClient_Conversation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice := newClient(t, srv.URL)
	bob := newClient(t, srv.URL)

	roomID, err := alice.CreateRoom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alice.Join(ctx, roomID); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Join(ctx, roomID); err != nil {
		t.Fatal(err)
	}

	if _, err := alice.PostMessage(ctx, roomID, "alice", "hi bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.PostMessage(ctx, roomID, "bob", "hi alice"); err != nil {
		t.Fatal(err)
	}

	msgs, err := alice.GetMessages(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if !msgs[0].Mine() || msgs[1].Mine() {
		t.Fatalf("alice should own only the first message: %+v", msgs)
	}

	ttl, err := bob.TTL(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	if err := bob.Destroy(ctx, roomID); err != nil {
		t.Fatal(err)
	}

	_, err = alice.GetMessages(ctx, roomID)
	var apiErr *chat.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after destroy, got %v", err)
	}

	// Destroying an already destroyed room still lets the client forget its token
	if err := alice.Destroy(ctx, roomID); err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	if tok := alice.Token(roomID); tok != "" {
		t.Fatalf("expected token to be forgotten, got %q", tok)
	}
}

func TestClient_TokensPersist(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := newClient(t, srv.URL)

	roomID, err := c.CreateRoom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	token, err := c.Join(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SaveTokens(); err != nil {
		t.Fatal(err)
	}

	reloaded := chat.NewClient(srv.URL)
	if got := reloaded.Token(roomID); got != token {
		t.Fatalf("expected saved token %q, got %q", token, got)
	}
}

func TestClient_WatchUntilDestroyed(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := newClient(t, srv.URL)
	bob := newClient(t, srv.URL)
	roomID, err := alice.CreateRoom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	alice.Join(ctx, roomID)
	bob.Join(ctx, roomID)

	events := make(chan chat.Event, 16)
	result := make(chan error, 1)
	go func() {
		result <- bob.Watch(ctx, roomID, func(ev chat.Event) error {
			events <- ev
			return nil
		})
	}()

	// Keep posting until the watcher is subscribed
	var first chat.Event
	for first.Event == "" {
		if _, err := alice.PostMessage(ctx, roomID, "alice", "ping"); err != nil {
			t.Fatal(err)
		}
		select {
		case first = <-events:
		case <-time.After(100 * time.Millisecond):
		}
	}
	if first.Event != "chat.message" {
		t.Fatalf("expected chat.message, got %q", first.Event)
	}

	if err := alice.Destroy(ctx, roomID); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, chat.ErrRoomDestroyed) {
			t.Fatalf("expected ErrRoomDestroyed, got %v", err)
		}
	case <-ctx.Done():
		t.Fatal("watch did not end after destroy")
	}
}
