// Package auth issues and verifies the per-participant tokens that gate a room.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
	"github.com/subhodeep2005s/realtime-chat/internal/metrics"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// Session is the result of a successful verification: a validated room and
// the caller's token for it.
type Session struct {
	RoomID string
	Token  string
}

// TTLSyncer aligns a room's derived keys with its remaining lifetime.
type TTLSyncer interface {
	SyncDerivedTTLs(ctx context.Context, roomID string) error
}

// Options configures an Authenticator.
type Options struct {
	// MaxParticipants caps the number of tokens per room. Zero disables the cap.
	MaxParticipants int
}

// Authenticator binds tokens to rooms. Only a keyed digest of each token is
// stored, under participants:{roomId}.
type Authenticator struct {
	keys   store.KeyStore
	hasher *crypto.TokenHasher
	sync   TTLSyncer
	opts   Options
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(keys store.KeyStore, hasher *crypto.TokenHasher, sync TTLSyncer, opts Options, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		keys:   keys,
		hasher: hasher,
		sync:   sync,
		opts:   opts,
		logger: logger,
	}
}

// Verify checks that token was issued for roomID. It only reads from the store.
func (a *Authenticator) Verify(ctx context.Context, roomID, token string) (Session, error) {
	if roomID == "" || token == "" {
		return Session{}, apperr.ErrUnauthorized
	}

	ok, err := a.keys.HashFieldExists(ctx, store.ParticipantsKey(roomID), a.hasher.Digest(roomID, token))
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.ErrUnauthorized
	}

	return Session{RoomID: roomID, Token: token}, nil
}

// Issue admits a caller to roomID and returns their session. A caller that
// already holds a valid token for the room keeps it.
func (a *Authenticator) Issue(ctx context.Context, roomID, presented string) (Session, error) {
	if roomID == "" {
		return Session{}, apperr.ErrRoomNotFound
	}

	// Re-admit existing participants without minting
	if presented != "" {
		sess, err := a.Verify(ctx, roomID, presented)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, apperr.ErrUnauthorized) {
			return Session{}, err
		}
	}

	exists, err := a.keys.Exists(ctx, store.MetaKey(roomID))
	if err != nil {
		return Session{}, err
	}
	if !exists {
		return Session{}, apperr.ErrRoomNotFound
	}

	// The cap is checked before the write; concurrent joins may overshoot it by the number of racers
	if a.opts.MaxParticipants > 0 {
		n, err := a.keys.HashLen(ctx, store.ParticipantsKey(roomID))
		if err != nil {
			return Session{}, err
		}
		if n >= int64(a.opts.MaxParticipants) {
			return Session{}, apperr.ErrRoomFull
		}
	}

	token, err := crypto.NewToken()
	if err != nil {
		return Session{}, err
	}

	err = a.keys.SetHashFields(ctx, store.ParticipantsKey(roomID), map[string]any{
		a.hasher.Digest(roomID, token): time.Now().UnixMilli(),
	})
	if err != nil {
		return Session{}, err
	}

	// participants:{roomId} must not outlive the room
	if err := a.sync.SyncDerivedTTLs(ctx, roomID); err != nil {
		return Session{}, err
	}

	metrics.ParticipantsJoined.Inc()
	a.logger.Debug().Str("room_id", roomID).Msg("participant joined")

	return Session{RoomID: roomID, Token: token}, nil
}
