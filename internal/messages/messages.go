// Package messages appends to and reads from a room's message history.
package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
	"github.com/subhodeep2005s/realtime-chat/internal/metrics"
	"github.com/subhodeep2005s/realtime-chat/internal/models"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// Notifier is told about every appended message.
type Notifier interface {
	MessageSent(ctx context.Context, msg models.Message)
}

// TTLSyncer aligns a room's derived keys with its remaining lifetime.
type TTLSyncer interface {
	SyncDerivedTTLs(ctx context.Context, roomID string) error
}

// Store keeps each room's history as an append-only list of JSON records under
// messages:{roomId}. Records carry the author's raw token, so the list itself
// is sensitive; List is the only read path and it redacts.
type Store struct {
	keys     store.KeyStore
	notifier Notifier
	sync     TTLSyncer
	logger   zerolog.Logger
}

// NewStore creates a message store.
func NewStore(keys store.KeyStore, notifier Notifier, sync TTLSyncer, logger zerolog.Logger) *Store {
	return &Store{
		keys:     keys,
		notifier: notifier,
		sync:     sync,
		logger:   logger,
	}
}

// Validate checks the declared input bounds, counted in characters.
func Validate(sender, text string) error {
	if utf8.RuneCountInString(sender) > models.MaxSenderLength {
		return fmt.Errorf("%w: sender exceeds %d characters", apperr.ErrValidation, models.MaxSenderLength)
	}
	if utf8.RuneCountInString(text) > models.MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d characters", apperr.ErrValidation, models.MaxTextLength)
	}
	return nil
}

// Append stores a message, emits chat.message and re-syncs the room's TTLs,
// in that order. The steps are not atomic: a failure after the push leaves
// the message stored.
func (s *Store) Append(ctx context.Context, sess auth.Session, sender, text string) (models.Message, error) {
	if err := Validate(sender, text); err != nil {
		return models.Message{}, err
	}

	exists, err := s.keys.Exists(ctx, store.MetaKey(sess.RoomID))
	if err != nil {
		return models.Message{}, err
	}
	if !exists {
		return models.Message{}, apperr.ErrRoomNotFound
	}

	msg := models.Message{
		ID:        crypto.NewMessageID(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		RoomID:    sess.RoomID,
		Token:     sess.Token,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, err
	}

	// An expired history list is simply recreated
	if err := s.keys.Append(ctx, store.MessagesKey(sess.RoomID), data); err != nil {
		return models.Message{}, err
	}
	metrics.MessagesPosted.Inc()

	s.notifier.MessageSent(ctx, msg)

	if err := s.sync.SyncDerivedTTLs(ctx, sess.RoomID); err != nil {
		s.logger.Error().Err(err).Str("room_id", sess.RoomID).Str("message_id", msg.ID).Msg("ttl sync after append failed")
		return models.Message{}, err
	}

	return msg, nil
}

// List returns the room's history in append order. Each message carries the
// reader's token only if the reader wrote it.
func (s *Store) List(ctx context.Context, sess auth.Session) ([]models.Message, error) {
	records, err := s.keys.Range(ctx, store.MessagesKey(sess.RoomID), 0, -1)
	if err != nil {
		return nil, err
	}

	out := make([]models.Message, 0, len(records))
	for _, data := range records {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Str("room_id", sess.RoomID).Msg("skipping malformed history record")
			continue
		}
		out = append(out, redact(msg, sess.Token))
	}

	return out, nil
}

func redact(msg models.Message, readerToken string) models.Message {
	if msg.Token != "" && readerToken != "" && crypto.Equal(msg.Token, readerToken) {
		msg.Token = readerToken
		return msg
	}
	return msg.Public()
}
