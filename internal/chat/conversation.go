package chat

import (
	"errors"

	"github.com/umar/familychat/internal/backend"
	"github.com/umar/familychat/internal/composer"
	"github.com/umar/familychat/internal/directory"
	"github.com/umar/familychat/internal/feed"
	"github.com/umar/familychat/internal/realtime"
)

func (c *Client) requireBackend() bool {
	if c.hub.Configured() {
		return true
	}
	c.sendError(backend.ErrNotConfigured.Error(), "NOT_CONFIGURED")
	return false
}

func HandleDirectoryOpen(c *Client) {
	if !c.requireBackend() {
		return
	}
	name, _ := c.gate.Name()

	c.mu.Lock()
	if c.room != nil {
		c.closeRoomLocked()
		c.composer = nil
	}
	dir := c.dir
	fresh := dir == nil
	if fresh {
		dir = directory.New(name, c.hub.Store, c.hub.Changes, c.log)
		c.dir = dir
	}
	c.mu.Unlock()

	if fresh {
		dir.Open(c.ctx)
		if changes := dir.Changes(); changes != nil {
			go c.pumpDirectory(dir, changes)
		}
	}
	c.emitDirectory(dir)
}

func HandleDirectorySearch(c *Client, payload SearchPayload) {
	c.mu.Lock()
	dir := c.dir
	c.query = payload.Query
	c.mu.Unlock()
	if dir == nil {
		c.sendError("open the conversation list first", "NO_VIEW")
		return
	}
	c.emitDirectory(dir)
}

// HandleConversationStart selects the conversation with a peer, creating
// it on first contact. Invalid peers are ignored and backend failures are
// only logged.
func HandleConversationStart(c *Client, payload StartConversationPayload) {
	c.mu.Lock()
	dir := c.dir
	c.mu.Unlock()
	if dir == nil {
		c.sendError("open the conversation list first", "NO_VIEW")
		return
	}

	summary, err := dir.Start(c.ctx, payload.Peer)
	if errors.Is(err, directory.ErrInvalidPeer) {
		return
	}
	if err != nil {
		c.log.Error("failed to start conversation", "peer", payload.Peer, "error", err)
		return
	}
	c.emitDirectory(dir)
	openConversation(c, summary.ID, summary.OtherUser)
}

func HandleConversationOpen(c *Client, payload OpenConversationPayload) {
	if payload.ConversationID == "" {
		c.sendError("conversation_id is required", "INVALID_PAYLOAD")
		return
	}
	openConversation(c, payload.ConversationID, payload.OtherUser)
}

func openConversation(c *Client, conversationID, otherUser string) {
	if !c.requireBackend() {
		return
	}
	name, _ := c.gate.Name()

	c.mu.Lock()
	if c.room != nil {
		c.closeRoomLocked()
	}
	if c.conv != nil {
		c.conv.Close()
	}
	conv := feed.NewConversationFeed(conversationID, name, c.hub.Store, c.hub.Changes, c.log)
	c.conv = conv
	c.composer = composer.New(conv.Send)
	c.mu.Unlock()

	c.emit(TypeConversationSelected, ConversationSelectedPayload{
		ConversationID: conversationID,
		OtherUser:      otherUser,
	})
	if err := conv.Open(c.ctx); err != nil {
		c.log.Error("failed to load conversation", "conversation_id", conversationID, "error", err)
		c.toast("Error", "Could not load messages", true)
	}
	c.emitConversation(conv)
	if changes := conv.Changes(); changes != nil {
		go c.pumpConversation(conv, changes)
	}
}

func HandleMessageDelete(c *Client, payload DeletePayload) {
	c.mu.Lock()
	conv := c.conv
	c.mu.Unlock()
	if conv == nil {
		c.sendError("open a conversation first", "NO_VIEW")
		return
	}
	if payload.MessageID == "" {
		c.sendError("message_id is required", "INVALID_PAYLOAD")
		return
	}

	if err := conv.Delete(c.ctx, payload.MessageID); err != nil {
		c.log.Error("failed to delete message", "message_id", payload.MessageID, "error", err)
		c.toast("Error", "Could not delete message", true)
		return
	}
	c.toast("Message deleted", "Message has been deleted", false)
}

func (c *Client) pumpConversation(conv *feed.ConversationFeed, changes <-chan realtime.Change) {
	for change := range changes {
		if conv.Apply(change) {
			c.emitConversation(conv)
		}
	}
}

func (c *Client) pumpDirectory(dir *directory.Directory, changes <-chan realtime.Change) {
	for change := range changes {
		if dir.HandleChange(c.ctx, change) {
			c.emitDirectory(dir)
		}
	}
}

func (c *Client) emitConversation(conv *feed.ConversationFeed) {
	c.emit(TypeFeedSnapshot, FeedSnapshotPayload{
		Scope:          ScopeConversation,
		ConversationID: conv.ConversationID(),
		Messages:       conv.Visible(),
	})
}

func (c *Client) emitDirectory(dir *directory.Directory) {
	c.mu.Lock()
	query := c.query
	c.mu.Unlock()
	c.emit(TypeDirectorySnapshot, DirectorySnapshotPayload{
		Query:         query,
		Conversations: dir.Filter(query),
	})
}
