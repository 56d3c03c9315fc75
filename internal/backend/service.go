// Package backend is the data service the chat views talk to: a Store
// whose successful writes are announced on the realtime change channel.
package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/models"
	"github.com/umar/familychat/internal/realtime"
)

// ErrNotConfigured is returned when the service runs without backend
// connection strings.
var ErrNotConfigured = errors.New("backend not configured")

type Publisher interface {
	Publish(ctx context.Context, c realtime.Change) error
}

type Service struct {
	store     database.Store
	publisher Publisher
	log       *slog.Logger
}

func New(store database.Store, publisher Publisher, log *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, log: log}
}

func (s *Service) RoomMessages(ctx context.Context) ([]models.RoomMessage, error) {
	return s.store.RoomMessages(ctx)
}

func (s *Service) CreateRoomMessage(ctx context.Context, username, text string) (*models.RoomMessage, error) {
	m, err := s.store.CreateRoomMessage(ctx, username, text)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.TableRoomMessages, realtime.EventInsert, nil, m)
	return m, nil
}

func (s *Service) ConversationsFor(ctx context.Context, participant string) ([]models.Conversation, error) {
	return s.store.ConversationsFor(ctx, participant)
}

func (s *Service) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	return s.store.LastMessage(ctx, conversationID)
}

func (s *Service) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.store.Messages(ctx, conversationID)
}

func (s *Service) CreateMessage(ctx context.Context, conversationID, sender, text string) (*models.Message, error) {
	m, err := s.store.CreateMessage(ctx, conversationID, sender, text)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.TableMessages, realtime.EventInsert, nil, m)
	return m, nil
}

func (s *Service) SoftDeleteMessage(ctx context.Context, messageID, sender string, at time.Time) (*models.Message, error) {
	m, err := s.store.SoftDeleteMessage(ctx, messageID, sender, at)
	if err != nil {
		return nil, err
	}
	before := *m
	before.DeletedAt = nil
	s.publish(ctx, realtime.TableMessages, realtime.EventUpdate, before, m)
	return m, nil
}

func (s *Service) TouchConversation(ctx context.Context, conversationID string, at time.Time) (*models.Conversation, error) {
	c, err := s.store.TouchConversation(ctx, conversationID, at)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.TableConversations, realtime.EventUpdate, nil, c)
	return c, nil
}

func (s *Service) GetOrCreateConversation(ctx context.Context, user1, user2 string) (*models.Conversation, bool, error) {
	c, created, err := s.store.GetOrCreateConversation(ctx, user1, user2)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.publish(ctx, realtime.TableConversations, realtime.EventInsert, nil, c)
	}
	return c, created, nil
}

// publish never fails the write that preceded it.
func (s *Service) publish(ctx context.Context, table string, event realtime.Event, before, after any) {
	c, err := realtime.NewChange(table, event, before, after)
	if err != nil {
		s.log.Error("failed to build change", "table", table, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, c); err != nil {
		s.log.Error("failed to publish change", "table", table, "event", event, "error", err)
	}
}
