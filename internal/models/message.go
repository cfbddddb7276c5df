package models

const (
	MaxSenderLength = 100
	MaxTextLength   = 1000
)

// Message is a chat message stored in a room's history list.
// Token holds the author's access token and is only ever returned to that author.
type Message struct {
	ID        string `json:"id"` // ULID
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // Unix ms
	RoomID    string `json:"roomId"`
	Token     string `json:"token,omitempty"`
}

// Public returns a copy of the message without the token field.
func (m Message) Public() Message {
	m.Token = ""
	return m
}
