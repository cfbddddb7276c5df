package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
	"github.com/subhodeep2005s/realtime-chat/internal/store/storetest"
)

// destroyRecorder records destroy notifications and whether the room still
// existed when each one was sent.
type destroyRecorder struct {
	keys          store.KeyStore
	mu            sync.Mutex
	rooms         []string
	metaAtPublish []bool
}

func (r *destroyRecorder) RoomDestroyed(ctx context.Context, roomID string) {
	ok, _ := r.keys.Exists(ctx, store.MetaKey(roomID))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, roomID)
	r.metaAtPublish = append(r.metaAtPublish, ok)
}

func newTestManager(t *testing.T) (*Manager, *destroyRecorder, func(time.Duration), func()) {
	t.Helper()
	keys, mr := storetest.New(t)
	rec := &destroyRecorder{keys: keys}
	return NewManager(keys, rec, 0, zerolog.Nop()), rec, mr.FastForward, mr.Close
}

func TestCreateRoom_InitialLifetime(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	ttl, err := m.RemainingLifetime(ctx, auth.Session{RoomID: roomID})
	require.NoError(t, err)
	require.Greater(t, ttl, int64(0))
	require.LessOrEqual(t, ttl, DefaultTTLSeconds)

	fields, err := m.keys.GetHashFields(ctx, store.MetaKey(roomID))
	require.NoError(t, err)
	require.Equal(t, "[]", fields["connected"])
	require.NotEmpty(t, fields["createdAt"])
}

func TestCreateRoom_IndependentRooms(t *testing.T) {
	m, _, fastForward, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateRoom(ctx)
	require.NoError(t, err)

	fastForward(100 * time.Second)

	second, err := m.CreateRoom(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	ttl1, err := m.RemainingLifetime(ctx, auth.Session{RoomID: first})
	require.NoError(t, err)
	ttl2, err := m.RemainingLifetime(ctx, auth.Session{RoomID: second})
	require.NoError(t, err)

	require.Equal(t, int64(500), ttl1)
	require.Equal(t, int64(600), ttl2)
}

func TestNewManager_CustomTTL(t *testing.T) {
	keys, _ := storetest.New(t)
	m := NewManager(keys, &destroyRecorder{keys: keys}, 120, zerolog.Nop())

	roomID, err := m.CreateRoom(context.Background())
	require.NoError(t, err)

	ttl, err := m.RemainingLifetime(context.Background(), auth.Session{RoomID: roomID})
	require.NoError(t, err)
	require.Equal(t, int64(120), ttl)
}

func TestRemainingLifetime_ClampsToZero(t *testing.T) {
	m, _, fastForward, _ := newTestManager(t)
	ctx := context.Background()

	ttl, err := m.RemainingLifetime(ctx, auth.Session{RoomID: "never-existed"})
	require.NoError(t, err)
	require.Equal(t, int64(0), ttl)

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)

	fastForward(601 * time.Second)

	ttl, err = m.RemainingLifetime(ctx, auth.Session{RoomID: roomID})
	require.NoError(t, err)
	require.Equal(t, int64(0), ttl)
}

func TestDestroyRoom_PublishesBeforeDelete(t *testing.T) {
	m, rec, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, m.keys.Append(ctx, store.MessagesKey(roomID), []byte(`{}`)))

	require.NoError(t, m.DestroyRoom(ctx, auth.Session{RoomID: roomID, Token: "tok1"}))

	require.Equal(t, []string{roomID}, rec.rooms)
	require.Equal(t, []bool{true}, rec.metaAtPublish)

	for _, key := range store.RoomKeys(roomID) {
		ok, err := m.keys.Exists(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
}

func TestDestroyRoom_Idempotent(t *testing.T) {
	m, rec, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)
	sess := auth.Session{RoomID: roomID, Token: "tok1"}

	require.NoError(t, m.DestroyRoom(ctx, sess))
	require.NoError(t, m.DestroyRoom(ctx, sess))
	require.NoError(t, m.DestroyRoom(ctx, auth.Session{RoomID: "never-existed"}))

	require.Len(t, rec.rooms, 3)

	for _, key := range []string{store.MetaKey(roomID), store.MessagesKey(roomID)} {
		ok, err := m.keys.Exists(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
}

func TestSyncDerivedTTLs_MatchesMetadata(t *testing.T) {
	m, _, fastForward, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)

	fastForward(42 * time.Second)

	// Derived keys start without an expiry
	require.NoError(t, m.keys.Append(ctx, store.MessagesKey(roomID), []byte(`{}`)))
	require.NoError(t, m.keys.SetHashFields(ctx, store.ParticipantsKey(roomID), map[string]any{"d": 1}))
	require.NoError(t, m.keys.SetHashFields(ctx, store.ChannelKey(roomID), map[string]any{"c": 1}))

	require.NoError(t, m.SyncDerivedTTLs(ctx, roomID))

	meta, err := m.keys.TTL(ctx, store.MetaKey(roomID))
	require.NoError(t, err)
	require.Equal(t, int64(558), meta)

	for _, key := range store.DerivedKeys(roomID) {
		ttl, err := m.keys.TTL(ctx, key)
		require.NoError(t, err)
		require.Equal(t, meta, ttl, key)
	}
}

func TestSyncDerivedTTLs_NeverExtends(t *testing.T) {
	m, _, fastForward, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)

	// A derived key granted a longer life is pulled back to the room's
	require.NoError(t, m.keys.Append(ctx, store.MessagesKey(roomID), []byte(`{}`)))
	require.NoError(t, m.keys.Expire(ctx, store.MessagesKey(roomID), 3600))

	fastForward(300 * time.Second)
	require.NoError(t, m.SyncDerivedTTLs(ctx, roomID))

	ttl, err := m.keys.TTL(ctx, store.MessagesKey(roomID))
	require.NoError(t, err)
	require.Equal(t, int64(300), ttl)
}

func TestSyncDerivedTTLs_LapsedRoomExpiresDerivedKeys(t *testing.T) {
	m, _, fastForward, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)

	fastForward(601 * time.Second)

	// Written after the room lapsed, e.g. by an append racing expiry
	require.NoError(t, m.keys.Append(ctx, store.MessagesKey(roomID), []byte(`{}`)))

	require.NoError(t, m.SyncDerivedTTLs(ctx, roomID))

	ok, err := m.keys.Exists(ctx, store.MessagesKey(roomID))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManager_StoreUnavailable(t *testing.T) {
	m, _, _, closeStore := newTestManager(t)
	closeStore()
	ctx := context.Background()

	_, err := m.CreateRoom(ctx)
	require.True(t, errors.Is(err, apperr.ErrStoreUnavailable))

	_, err = m.RemainingLifetime(ctx, auth.Session{RoomID: "r"})
	require.True(t, errors.Is(err, apperr.ErrStoreUnavailable))

	err = m.DestroyRoom(ctx, auth.Session{RoomID: "r"})
	require.True(t, errors.Is(err, apperr.ErrStoreUnavailable))

	err = m.SyncDerivedTTLs(ctx, "r")
	require.True(t, errors.Is(err, apperr.ErrStoreUnavailable))
}

func TestDescribe(t *testing.T) {
	m, _, fastForward, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)
	sess := auth.Session{RoomID: roomID}

	require.NoError(t, m.keys.SetHashFields(ctx, store.ParticipantsKey(roomID), map[string]any{"d1": 1, "d2": 2}))
	require.NoError(t, m.keys.SetHashFields(ctx, store.ChannelKey(roomID), map[string]any{"c1": 1}))
	fastForward(60 * time.Second)

	room, err := m.Describe(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, roomID, room.ID)
	require.NotZero(t, room.CreatedAt)
	require.Equal(t, int64(2), room.Participants)
	require.Equal(t, int64(1), room.Online)
	require.Equal(t, int64(540), room.TTL)

	require.NoError(t, m.DestroyRoom(ctx, sess))
	_, err = m.Describe(ctx, sess)
	require.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestDestroyRoom_Concurrent(t *testing.T) {
	m, rec, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx)
	require.NoError(t, err)
	sess := auth.Session{RoomID: roomID, Token: "tok1"}
	require.NoError(t, m.keys.Append(ctx, store.MessagesKey(roomID), []byte(`{}`)))

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.DestroyRoom(ctx, sess)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	require.Len(t, rec.rooms, callers)

	for _, key := range store.RoomKeys(roomID) {
		ok, err := m.keys.Exists(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
}

func TestSyncDerivedTTLs_MetadataWithoutExpiry(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()
	roomID := "no-expiry"

	require.NoError(t, m.keys.SetHashFields(ctx, store.MetaKey(roomID), map[string]any{"createdAt": 1}))
	require.NoError(t, m.keys.Append(ctx, store.MessagesKey(roomID), []byte(`{}`)))
	require.NoError(t, m.keys.Expire(ctx, store.MessagesKey(roomID), 120))

	require.NoError(t, m.SyncDerivedTTLs(ctx, roomID))

	ok, err := m.keys.Exists(ctx, store.MessagesKey(roomID))
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := m.keys.TTL(ctx, store.MessagesKey(roomID))
	require.NoError(t, err)
	require.Equal(t, int64(120), ttl)
}
