package store

// MetaKey returns the key of a room's metadata hash. Its TTL is the room's lifetime.
func MetaKey(roomID string) string {
	return "meta:" + roomID
}

// MessagesKey returns the key of a room's message history list.
func MessagesKey(roomID string) string {
	return "messages:" + roomID
}

// ParticipantsKey returns the key of the hash of token digests admitted to a room.
func ParticipantsKey(roomID string) string {
	return "participants:" + roomID
}

// ChannelKey returns the key of a room's realtime channel. It holds the
// room's presence hash and names the pub/sub channel.
func ChannelKey(roomID string) string {
	return roomID
}

// DerivedKeys returns every key whose lifetime follows the room's metadata key.
func DerivedKeys(roomID string) []string {
	return []string{
		MessagesKey(roomID),
		ParticipantsKey(roomID),
		ChannelKey(roomID),
	}
}

// RoomKeys returns every key owned by a room, metadata included.
func RoomKeys(roomID string) []string {
	return []string{
		ChannelKey(roomID),
		MetaKey(roomID),
		MessagesKey(roomID),
		ParticipantsKey(roomID),
	}
}
