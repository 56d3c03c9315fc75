package models

import (
	"strings"
	"time"
)

type Conversation struct {
	ID           string    `json:"id"`
	Participant1 string    `json:"participant1"`
	Participant2 string    `json:"participant2"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Involves reports whether name occupies either participant slot.
func (c Conversation) Involves(name string) bool {
	return c.Participant1 == name || c.Participant2 == name
}

// OtherParticipant returns the participant that is not me.
func (c Conversation) OtherParticipant(me string) string {
	if c.Participant1 == me {
		return c.Participant2
	}
	return c.Participant1
}

type LastMessage struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one row of the conversation directory.
type ConversationSummary struct {
	Conversation
	OtherUser   string       `json:"other_user"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
}

// Matches reports whether the other participant's name contains query,
// ignoring case. An empty query matches everything.
func (s ConversationSummary) Matches(query string) bool {
	return strings.Contains(strings.ToLower(s.OtherUser), strings.ToLower(query))
}
