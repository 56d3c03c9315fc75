// Package directory lists the conversations a participant is part of.
package directory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/umar/familychat/internal/models"
	"github.com/umar/familychat/internal/realtime"
)

var ErrInvalidPeer = errors.New("peer name must be non-blank and differ from your own")

type Store interface {
	ConversationsFor(ctx context.Context, participant string) ([]models.Conversation, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	GetOrCreateConversation(ctx context.Context, user1, user2 string) (*models.Conversation, bool, error)
}

type Subscriber interface {
	Subscribe(filter realtime.Filter) *realtime.Subscription
}

type Directory struct {
	currentUser string
	store       Store
	changes     Subscriber
	log         *slog.Logger

	mu      sync.RWMutex
	entries []models.ConversationSummary
	sub     *realtime.Subscription
}

func New(currentUser string, store Store, changes Subscriber, log *slog.Logger) *Directory {
	return &Directory{
		currentUser: currentUser,
		store:       store,
		changes:     changes,
		log:         log.With("username", currentUser),
		entries:     []models.ConversationSummary{},
	}
}

// Open subscribes to every change on the conversations table and loads
// the listing.
func (d *Directory) Open(ctx context.Context) {
	d.sub = d.changes.Subscribe(realtime.Filter{
		Table: realtime.TableConversations,
		Event: realtime.EventAll,
	})
	d.Refresh(ctx)
}

func (d *Directory) Changes() <-chan realtime.Change {
	if d.sub == nil {
		return nil
	}
	return d.sub.C()
}

// Refresh reloads the full listing. Failures are logged and leave the
// previous listing in place; it reports whether the reload succeeded.
func (d *Directory) Refresh(ctx context.Context) bool {
	if err := d.Reload(ctx); err != nil {
		d.log.Error("failed to fetch conversations", "error", err)
		return false
	}
	return true
}

// Reload is Refresh for callers that report the failure themselves.
func (d *Directory) Reload(ctx context.Context) error {
	entries, err := d.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch conversations: %w", err)
	}
	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

// load fetches the conversations and then, one round-trip each, their
// latest undeleted message.
func (d *Directory) load(ctx context.Context) ([]models.ConversationSummary, error) {
	conversations, err := d.store.ConversationsFor(ctx, d.currentUser)
	if err != nil {
		return nil, err
	}

	entries := lo.Map(conversations, func(c models.Conversation, _ int) models.ConversationSummary {
		return models.ConversationSummary{
			Conversation: c,
			OtherUser:    c.OtherParticipant(d.currentUser),
		}
	})
	for i := range entries {
		last, err := d.store.LastMessage(ctx, entries[i].ID)
		if err != nil {
			d.log.Warn("failed to fetch last message", "conversation_id", entries[i].ID, "error", err)
			continue
		}
		if last != nil {
			entries[i].LastMessage = &models.LastMessage{
				Text:      last.Text,
				Sender:    last.Sender,
				CreatedAt: last.CreatedAt,
			}
		}
	}

	slices.SortStableFunc(entries, func(a, b models.ConversationSummary) int {
		return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	})
	return entries, nil
}

// Entries returns the listing, most recently updated first.
func (d *Directory) Entries() []models.ConversationSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.ConversationSummary(nil), d.entries...)
}

// Filter narrows the listing to conversations whose other participant
// contains query, ignoring case.
func (d *Directory) Filter(query string) []models.ConversationSummary {
	return lo.Filter(d.Entries(), func(s models.ConversationSummary, _ int) bool {
		return s.Matches(query)
	})
}

// Start looks up or creates the conversation with peer and reloads the
// listing. The backend guarantees one conversation per pair.
func (d *Directory) Start(ctx context.Context, peer string) (*models.ConversationSummary, error) {
	peer = strings.TrimSpace(peer)
	if peer == "" || peer == d.currentUser {
		return nil, ErrInvalidPeer
	}

	c, _, err := d.store.GetOrCreateConversation(ctx, d.currentUser, peer)
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}
	d.Refresh(ctx)

	return &models.ConversationSummary{
		Conversation: *c,
		OtherUser:    peer,
	}, nil
}

// HandleChange reloads the full listing on any conversations change.
func (d *Directory) HandleChange(ctx context.Context, c realtime.Change) bool {
	if c.Table != realtime.TableConversations {
		return false
	}
	return d.Refresh(ctx)
}

func (d *Directory) Close() {
	if d.sub != nil {
		d.sub.Close()
		d.sub = nil
	}
}
