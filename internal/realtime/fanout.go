package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/metrics"
	"github.com/subhodeep2005s/realtime-chat/internal/models"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

// Fanout emits room events on a best-effort basis: transport failures are
// logged and counted, never returned to the mutation that triggered them.
type Fanout struct {
	pub    Publisher
	logger zerolog.Logger
}

// NewFanout creates a fan-out over pub.
func NewFanout(pub Publisher, logger zerolog.Logger) *Fanout {
	return &Fanout{pub: pub, logger: logger}
}

// MessageSent emits chat.message with the token stripped from msg.
func (f *Fanout) MessageSent(ctx context.Context, msg models.Message) {
	f.emit(ctx, msg.RoomID, EventMessage, msg.Public())
}

// RoomDestroyed emits chat.destroy.
func (f *Fanout) RoomDestroyed(ctx context.Context, roomID string) {
	f.emit(ctx, roomID, EventDestroy, DestroyPayload{IsDestroyed: true})
}

func (f *Fanout) emit(ctx context.Context, roomID, event string, payload any) {
	if err := f.pub.Publish(ctx, store.ChannelKey(roomID), event, payload); err != nil {
		metrics.PublishFailures.WithLabelValues(event).Inc()
		f.logger.Warn().
			Err(err).
			Str("room_id", roomID).
			Str("event", event).
			Msg("realtime publish failed")
	}
}
