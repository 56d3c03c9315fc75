package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/umar/familychat/internal/models"
	"github.com/umar/familychat/internal/realtime"
)

const WelcomeText = "Welcome to the family chat room! 🏠"

type RoomStore interface {
	RoomMessages(ctx context.Context) ([]models.RoomMessage, error)
	CreateRoomMessage(ctx context.Context, username, text string) (*models.RoomMessage, error)
}

type Subscriber interface {
	Subscribe(filter realtime.Filter) *realtime.Subscription
}

// RoomFeed is the family room as seen by one participant. With a nil store
// it runs local-only: nothing is fetched or persisted and only this
// participant's own messages appear.
type RoomFeed struct {
	username string
	store    RoomStore
	changes  Subscriber
	log      *slog.Logger
	now      func() time.Time

	feed *Feed[models.RoomMessage]
	sub  *realtime.Subscription
}

func NewRoomFeed(username string, store RoomStore, changes Subscriber, log *slog.Logger) *RoomFeed {
	r := &RoomFeed{
		username: username,
		store:    store,
		changes:  changes,
		log:      log.With("username", username),
		now:      time.Now,
		feed:     New[models.RoomMessage](),
	}
	if r.Local() {
		r.feed.Reset([]models.RoomMessage{{
			ID:        "welcome",
			Username:  models.SystemSender,
			Text:      WelcomeText,
			CreatedAt: r.now(),
		}})
	}
	return r
}

func (r *RoomFeed) Local() bool { return r.store == nil }

// Open subscribes to room inserts, announces the participant and loads
// the history. The announcement is best effort and does not depend on
// the history load.
func (r *RoomFeed) Open(ctx context.Context) error {
	if r.Local() {
		return nil
	}
	r.sub = r.changes.Subscribe(realtime.Filter{
		Table: realtime.TableRoomMessages,
		Event: realtime.EventInsert,
	})
	r.announce(fmt.Sprintf("%s joined the chat", r.username))

	messages, err := r.store.RoomMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to load room: %w", err)
	}
	r.feed.Reset(messages)
	return nil
}

// Changes is nil in local-only mode and before Open.
func (r *RoomFeed) Changes() <-chan realtime.Change {
	if r.sub == nil {
		return nil
	}
	return r.sub.C()
}

// Apply folds an insert notification into the feed and returns the new
// row when it was appended.
func (r *RoomFeed) Apply(c realtime.Change) (models.RoomMessage, bool) {
	if c.Table != realtime.TableRoomMessages || c.Event != realtime.EventInsert {
		return models.RoomMessage{}, false
	}
	var m models.RoomMessage
	if err := c.Decode(&m); err != nil {
		r.log.Warn("ignoring undecodable room change", "error", err)
		return models.RoomMessage{}, false
	}
	return m, r.feed.Append(m)
}

// Send persists text. The message shows up once its insert notification
// comes back; in local-only mode it is appended directly and returned.
func (r *RoomFeed) Send(ctx context.Context, text string) (*models.RoomMessage, error) {
	if r.Local() {
		m := models.RoomMessage{
			ID:        uuid.NewString(),
			Username:  r.username,
			Text:      text,
			CreatedAt: r.now(),
		}
		r.feed.Append(m)
		return &m, nil
	}
	if _, err := r.store.CreateRoomMessage(ctx, r.username, text); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return nil, nil
}

func (r *RoomFeed) Visible() []models.RoomMessage { return r.feed.Visible() }

// Close announces the departure, then drops the subscription.
func (r *RoomFeed) Close() {
	if r.Local() || r.sub == nil {
		return
	}
	r.announce(fmt.Sprintf("%s left the chat", r.username))
	r.sub.Close()
	r.sub = nil
}

// announce inserts a system notice without waiting for it. Failures are
// logged and otherwise ignored.
func (r *RoomFeed) announce(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.store.CreateRoomMessage(ctx, models.SystemSender, text); err != nil {
			r.log.Warn("failed to post system message", "text", text, "error", err)
		}
	}()
}
