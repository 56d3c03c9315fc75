//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package database

import (
	"context"
	"errors"
	"time"

	"github.com/umar/familychat/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Store is the backend data contract shared by the room and the
// conversation variants.
type Store interface {
	RoomMessages(ctx context.Context) ([]models.RoomMessage, error)
	CreateRoomMessage(ctx context.Context, username, text string) (*models.RoomMessage, error)

	ConversationsFor(ctx context.Context, participant string) ([]models.Conversation, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, conversationID, sender, text string) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, sender string, at time.Time) (*models.Message, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) (*models.Conversation, error)
	GetOrCreateConversation(ctx context.Context, user1, user2 string) (*models.Conversation, bool, error)
}
