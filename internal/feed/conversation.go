package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/umar/familychat/internal/models"
	"github.com/umar/familychat/internal/realtime"
)

type ConversationStore interface {
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, conversationID, sender, text string) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, sender string, at time.Time) (*models.Message, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) (*models.Conversation, error)
}

// ConversationFeed is one conversation as seen by currentUser.
type ConversationFeed struct {
	conversationID string
	currentUser    string
	store          ConversationStore
	changes        Subscriber
	log            *slog.Logger
	now            func() time.Time

	feed *Feed[models.Message]
	sub  *realtime.Subscription
}

func NewConversationFeed(conversationID, currentUser string, store ConversationStore, changes Subscriber, log *slog.Logger) *ConversationFeed {
	return &ConversationFeed{
		conversationID: conversationID,
		currentUser:    currentUser,
		store:          store,
		changes:        changes,
		log:            log.With("conversation_id", conversationID, "username", currentUser),
		now:            time.Now,
		feed:           New[models.Message](),
	}
}

func (c *ConversationFeed) ConversationID() string { return c.conversationID }

// Open subscribes to inserts and updates scoped to the conversation and
// loads its messages.
func (c *ConversationFeed) Open(ctx context.Context) error {
	c.sub = c.changes.Subscribe(realtime.Filter{
		Table:  realtime.TableMessages,
		Event:  realtime.EventAll,
		Column: "conversation_id",
		Value:  c.conversationID,
	})
	return c.Load(ctx)
}

// Load refetches every message of the conversation, oldest first.
func (c *ConversationFeed) Load(ctx context.Context) error {
	messages, err := c.store.Messages(ctx, c.conversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	c.feed.Reset(messages)
	return nil
}

func (c *ConversationFeed) Changes() <-chan realtime.Change {
	if c.sub == nil {
		return nil
	}
	return c.sub.C()
}

// Apply appends inserted rows and replaces updated rows by id. It reports
// whether the feed changed.
func (c *ConversationFeed) Apply(ch realtime.Change) bool {
	if ch.Table != realtime.TableMessages {
		return false
	}
	var m models.Message
	switch ch.Event {
	case realtime.EventInsert:
		if err := ch.Decode(&m); err != nil {
			c.log.Warn("ignoring undecodable insert", "error", err)
			return false
		}
		if m.ConversationID != c.conversationID {
			return false
		}
		return c.feed.Append(m)
	case realtime.EventUpdate:
		if err := ch.Decode(&m); err != nil {
			c.log.Warn("ignoring undecodable update", "error", err)
			return false
		}
		return c.feed.Patch(m)
	default:
		return false
	}
}

// Send inserts the message and then bumps the conversation's update time.
// The two calls are not atomic: if the bump fails the message stays
// persisted and only the directory ordering is stale.
func (c *ConversationFeed) Send(ctx context.Context, text string) error {
	if _, err := c.store.CreateMessage(ctx, c.conversationID, c.currentUser, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if _, err := c.store.TouchConversation(ctx, c.conversationID, c.now().UTC()); err != nil {
		c.log.Warn("failed to bump conversation timestamp", "error", err)
	}
	return nil
}

// Delete soft-deletes one of the current user's messages.
func (c *ConversationFeed) Delete(ctx context.Context, messageID string) error {
	if _, err := c.store.SoftDeleteMessage(ctx, messageID, c.currentUser, c.now().UTC()); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (c *ConversationFeed) Visible() []models.Message { return c.feed.Visible() }

func (c *ConversationFeed) All() []models.Message { return c.feed.All() }

func (c *ConversationFeed) Close() {
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}
