package realtime

import (
	"context"
	"time"

	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// TTLSyncer aligns a room's derived keys with its remaining lifetime.
type TTLSyncer interface {
	SyncDerivedTTLs(ctx context.Context, roomID string) error
}

// Presence records live realtime connections in the room's channel hash.
type Presence struct {
	keys store.KeyStore
	sync TTLSyncer
}

// NewPresence creates a presence tracker.
func NewPresence(keys store.KeyStore, sync TTLSyncer) *Presence {
	return &Presence{keys: keys, sync: sync}
}

// Connect registers a connection and returns its id. The channel key gets
// the room's remaining lifetime, never a fresh one.
func (p *Presence) Connect(ctx context.Context, roomID string) (string, error) {
	connID := crypto.NewConnectionID()

	err := p.keys.SetHashFields(ctx, store.ChannelKey(roomID), map[string]any{
		connID: time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	if err := p.sync.SyncDerivedTTLs(ctx, roomID); err != nil {
		return "", err
	}
	return connID, nil
}

// Disconnect removes a connection. Removing from a destroyed room is a no-op.
func (p *Presence) Disconnect(ctx context.Context, roomID, connID string) error {
	return p.keys.DeleteHashFields(ctx, store.ChannelKey(roomID), connID)
}

// Count returns the number of live connections in a room.
func (p *Presence) Count(ctx context.Context, roomID string) (int64, error) {
	return p.keys.HashLen(ctx, store.ChannelKey(roomID))
}
