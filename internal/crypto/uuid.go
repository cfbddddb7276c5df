package crypto

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRoomID generates a time-ordered UUID v7 for a new room.
func NewRoomID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewMessageID generates a ULID for a message.
func NewMessageID() string {
	return ulid.Make().String()
}

// NewConnectionID generates a ULID for a realtime connection.
func NewConnectionID() string {
	return ulid.Make().String()
}
