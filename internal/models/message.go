package models

import "time"

// SystemSender is the display name used for welcome, joined and left
// notices in the family room.
const SystemSender = "System"

// RoomMessage is a message posted to the shared family room.
type RoomMessage struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (m RoomMessage) Key() string { return m.ID }

// Hidden is always false: room messages have no delete path.
func (m RoomMessage) Hidden() bool { return false }

func (m RoomMessage) IsSystem() bool { return m.Username == SystemSender }

// Message is a message inside a one-to-one conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Sender         string     `json:"sender"`
	Text           string     `json:"text"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

func (m Message) Key() string { return m.ID }

// Hidden reports whether the message carries a deletion marker. Hidden
// messages stay stored but are never rendered.
func (m Message) Hidden() bool { return m.DeletedAt != nil }
