// Package rooms manages room creation, lifetime and teardown.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
	"github.com/subhodeep2005s/realtime-chat/internal/metrics"
	"github.com/subhodeep2005s/realtime-chat/internal/models"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// DefaultTTLSeconds is the lifetime of a new room.
const DefaultTTLSeconds int64 = 10 * 60

// Notifier is told when a room is about to be destroyed.
type Notifier interface {
	RoomDestroyed(ctx context.Context, roomID string)
}

// Manager owns the room metadata key and the lifetime of every key derived from it.
// It holds no state of its own; the KeyStore is the only arbiter.
type Manager struct {
	keys       store.KeyStore
	notifier   Notifier
	ttlSeconds int64
	logger     zerolog.Logger
}

// NewManager creates a room manager. A non-positive ttlSeconds selects DefaultTTLSeconds.
func NewManager(keys store.KeyStore, notifier Notifier, ttlSeconds int64, logger zerolog.Logger) *Manager {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultTTLSeconds
	}
	return &Manager{
		keys:       keys,
		notifier:   notifier,
		ttlSeconds: ttlSeconds,
		logger:     logger,
	}
}

// CreateRoom writes fresh metadata and starts the room's lifetime.
func (m *Manager) CreateRoom(ctx context.Context) (string, error) {
	roomID := crypto.NewRoomID()
	key := store.MetaKey(roomID)

	err := m.keys.SetHashFields(ctx, key, map[string]any{
		"connected": "[]",
		"createdAt": time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	if err := m.keys.Expire(ctx, key, m.ttlSeconds); err != nil {
		// Metadata without an expiry would never go away
		if delErr := m.keys.Delete(ctx, key); delErr != nil {
			m.logger.Error().Err(delErr).Str("room_id", roomID).Msg("failed to remove room without lifetime")
		}
		return "", err
	}

	metrics.RoomsCreated.Inc()
	m.logger.Info().Str("room_id", roomID).Int64("ttl", m.ttlSeconds).Msg("room created")

	return roomID, nil
}

// RemainingLifetime returns the room's remaining seconds, 0 once it is gone.
func (m *Manager) RemainingLifetime(ctx context.Context, sess auth.Session) (int64, error) {
	ttl, err := m.keys.TTL(ctx, store.MetaKey(sess.RoomID))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Describe returns a snapshot of the room. It fails with ErrRoomNotFound once the metadata is gone.
func (m *Manager) Describe(ctx context.Context, sess auth.Session) (models.Room, error) {
	fields, err := m.keys.GetHashFields(ctx, store.MetaKey(sess.RoomID))
	if err != nil {
		return models.Room{}, err
	}
	if len(fields) == 0 {
		return models.Room{}, apperr.ErrRoomNotFound
	}

	room := models.Room{ID: sess.RoomID}
	room.CreatedAt, _ = strconv.ParseInt(fields["createdAt"], 10, 64)

	if room.Participants, err = m.keys.HashLen(ctx, store.ParticipantsKey(sess.RoomID)); err != nil {
		return models.Room{}, err
	}
	if room.Online, err = m.keys.HashLen(ctx, store.ChannelKey(sess.RoomID)); err != nil {
		return models.Room{}, err
	}
	if room.TTL, err = m.RemainingLifetime(ctx, sess); err != nil {
		return models.Room{}, err
	}

	return room, nil
}

// DestroyRoom notifies the room's channel and then removes every room key.
// Destroying a room that is already gone succeeds.
func (m *Manager) DestroyRoom(ctx context.Context, sess auth.Session) error {
	// Publish first so readers racing the delete see the event
	m.notifier.RoomDestroyed(ctx, sess.RoomID)

	if err := m.keys.Delete(ctx, store.RoomKeys(sess.RoomID)...); err != nil {
		return err
	}

	metrics.RoomsDestroyed.Inc()
	m.logger.Info().Str("room_id", sess.RoomID).Msg("room destroyed")

	return nil
}

// SyncDerivedTTLs copies the metadata key's remaining TTL onto every derived
// key. A lapsed room propagates a non-positive TTL, which expires the derived
// keys immediately instead of granting them a fresh life. Metadata without an
// expiry leaves the derived keys untouched.
func (m *Manager) SyncDerivedTTLs(ctx context.Context, roomID string) error {
	remaining, err := m.keys.TTL(ctx, store.MetaKey(roomID))
	if err != nil {
		return err
	}
	if remaining == store.TTLNoExpiry {
		// Nothing to copy; leave the derived keys alone rather than delete a live room's state
		m.logger.Warn().Str("room_id", roomID).Msg("room metadata has no expiry")
		return nil
	}

	var errs []error
	for _, key := range store.DerivedKeys(roomID) {
		if err := m.keys.Expire(ctx, key, remaining); err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
