package chat

import (
	"context"
	"errors"
	"time"

	"github.com/umar/familychat/internal/composer"
	"github.com/umar/familychat/internal/feed"
	"github.com/umar/familychat/internal/identity"
	"github.com/umar/familychat/internal/realtime"
)

const (
	ModeLocalOnly   = "local-only"
	localOnlyNotice = "No backend is configured. Messages stay in this window and are not saved."
)

func HandleIdentify(c *Client, payload IdentifyPayload) {
	name, err := c.gate.Submit(payload.Name)
	switch {
	case errors.Is(err, identity.ErrBlankName):
		c.sendError("name must not be blank", "BLANK_NAME")
		return
	case errors.Is(err, identity.ErrAlreadyIdentified):
		c.sendError("already identified", "ALREADY_IDENTIFIED")
		return
	case err != nil:
		c.sendError("could not identify", "INTERNAL_ERROR")
		return
	}

	c.log = c.log.With("username", name)
	token, err := c.hub.Issuer.Issue(name)
	if err != nil {
		c.log.Error("failed to issue session token", "error", err)
		token = ""
	}
	c.emit(TypeIdentified, IdentifiedPayload{Name: name, Token: token})
}

func HandleRoomOpen(c *Client) {
	name, _ := c.gate.Name()

	c.mu.Lock()
	c.closeViewsLocked()
	room := feed.NewRoomFeed(name, c.hub.Store, c.hub.Changes, c.log)
	c.room = room
	c.composer = composer.New(func(ctx context.Context, text string) error {
		m, err := room.Send(ctx, text)
		if err != nil {
			return err
		}
		if m != nil {
			c.emit(TypeFeedAppend, FeedAppendPayload{Scope: ScopeRoom, Message: m})
		}
		return nil
	})
	c.mu.Unlock()

	if room.Local() {
		c.emit(TypeRoomBanner, BannerPayload{Mode: ModeLocalOnly, Message: localOnlyNotice})
		c.emit(TypeFeedSnapshot, FeedSnapshotPayload{Scope: ScopeRoom, Messages: room.Visible()})
		return
	}

	if err := room.Open(c.ctx); err != nil {
		c.log.Error("failed to open room", "error", err)
		c.toast("Error", "Could not load messages", true)
	}
	if c.hub.Presence != nil {
		if err := c.hub.Presence.Join(c.ctx, name); err != nil {
			c.log.Warn("failed to record presence", "error", err)
		}
	}
	c.emit(TypeFeedSnapshot, FeedSnapshotPayload{Scope: ScopeRoom, Messages: room.Visible()})
	if changes := room.Changes(); changes != nil {
		go c.pumpRoom(room, changes)
	}
}

func HandleRoomClose(c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room != nil {
		c.closeRoomLocked()
		c.composer = nil
	}
}

func HandleComposerSubmit(c *Client, payload SubmitPayload) {
	c.mu.Lock()
	comp := c.composer
	c.mu.Unlock()
	if comp == nil {
		c.sendError("open the room or a conversation first", "NO_VIEW")
		return
	}

	submitted, err := comp.SubmitText(c.ctx, payload.Text)
	if !submitted {
		return
	}
	if err != nil {
		c.log.Error("failed to send message", "error", err)
		c.toast("Error", "Could not send message", true)
	}
}

func (c *Client) pumpRoom(room *feed.RoomFeed, changes <-chan realtime.Change) {
	for change := range changes {
		if m, ok := room.Apply(change); ok {
			c.emit(TypeFeedAppend, FeedAppendPayload{Scope: ScopeRoom, Message: m})
		}
	}
}

func (c *Client) closeRoomLocked() {
	room := c.room
	c.room = nil
	if room.Local() {
		return
	}
	room.Close()
	if c.hub.Presence != nil {
		name, _ := c.gate.Name()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.hub.Presence.Leave(ctx, name); err != nil {
			c.log.Warn("failed to clear presence", "error", err)
		}
	}
}

func (c *Client) closeViewsLocked() {
	if c.room != nil {
		c.closeRoomLocked()
	}
	if c.conv != nil {
		c.conv.Close()
		c.conv = nil
	}
	if c.dir != nil {
		c.dir.Close()
		c.dir = nil
	}
	c.composer = nil
}
