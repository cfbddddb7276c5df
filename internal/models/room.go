package models

// Room is a snapshot of an ephemeral chat room. The hash at meta:{id} and
// its TTL are the source of truth for whether the room exists.
type Room struct {
	ID           string `json:"roomId"`
	CreatedAt    int64  `json:"createdAt"` // Unix ms
	Participants int64  `json:"participants"`
	Online       int64  `json:"online"` // Open realtime connections
	TTL          int64  `json:"ttl"`    // Remaining seconds
}
