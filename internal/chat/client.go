package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/umar/familychat/internal/composer"
	"github.com/umar/familychat/internal/directory"
	"github.com/umar/familychat/internal/feed"
	"github.com/umar/familychat/internal/identity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one browser session: an identity gate plus whichever view is
// open (the family room, or a conversation next to the directory).
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	gate identity.Gate

	mu       sync.Mutex
	room     *feed.RoomFeed
	conv     *feed.ConversationFeed
	dir      *directory.Directory
	query    string
	composer *composer.Composer
}

func ServeWS(hub *Hub, allowedOrigin string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Error("websocket upgrade failed", "error", err)
			return
		}

		client := newClient(hub, conn)
		hub.join(client)
		go client.writePump()
		go client.readPump()
	}
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		log:    hub.log.With("client_id", id),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error("ws read error", "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("malformed frame", "INVALID_FRAME")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit queues a frame. Frames for a full or closed buffer are dropped.
func (c *Client) emit(msgType string, payload any) {
	data, err := NewWSMessage(msgType, payload)
	if err != nil {
		c.log.Error("failed to encode frame", "type", msgType, "error", err)
		return
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping frame", "type", msgType)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) handleMessage(msg WSMessage) {
	if msg.Type == TypePing {
		c.handlePing()
		return
	}
	if msg.Type == TypeIdentify {
		var payload IdentifyPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("invalid payload", "INVALID_PAYLOAD")
			return
		}
		HandleIdentify(c, payload)
		return
	}

	if c.gate.State() != identity.Identified {
		c.sendError("choose a name first", "UNIDENTIFIED")
		return
	}

	switch msg.Type {
	case TypeRoomOpen:
		HandleRoomOpen(c)
	case TypeRoomClose:
		HandleRoomClose(c)
	case TypeDirectoryOpen:
		HandleDirectoryOpen(c)
	case TypeDirectorySearch:
		var payload SearchPayload
		if err := decode(msg.Payload, &payload); err != nil {
			c.sendError("invalid payload", "INVALID_PAYLOAD")
			return
		}
		HandleDirectorySearch(c, payload)
	case TypeConversationStart:
		var payload StartConversationPayload
		if err := decode(msg.Payload, &payload); err != nil {
			c.sendError("invalid payload", "INVALID_PAYLOAD")
			return
		}
		HandleConversationStart(c, payload)
	case TypeConversationOpen:
		var payload OpenConversationPayload
		if err := decode(msg.Payload, &payload); err != nil {
			c.sendError("invalid payload", "INVALID_PAYLOAD")
			return
		}
		HandleConversationOpen(c, payload)
	case TypeComposerSubmit:
		var payload SubmitPayload
		if err := decode(msg.Payload, &payload); err != nil {
			c.sendError("invalid payload", "INVALID_PAYLOAD")
			return
		}
		HandleComposerSubmit(c, payload)
	case TypeMessageDelete:
		var payload DeletePayload
		if err := decode(msg.Payload, &payload); err != nil {
			c.sendError("invalid payload", "INVALID_PAYLOAD")
			return
		}
		HandleMessageDelete(c, payload)
	default:
		c.sendError("unknown frame type", "UNKNOWN_TYPE")
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (c *Client) handlePing() {
	c.emit(TypePong, nil)
	c.mu.Lock()
	inRoom := c.room != nil && !c.room.Local()
	c.mu.Unlock()
	if inRoom && c.hub.Presence != nil {
		name, _ := c.gate.Name()
		if err := c.hub.Presence.Refresh(c.ctx, name); err != nil {
			c.log.Debug("failed to refresh presence", "error", err)
		}
	}
}

// teardown closes every open view. It runs once the connection is gone.
func (c *Client) teardown() {
	c.mu.Lock()
	c.closeViewsLocked()
	c.mu.Unlock()
	c.cancel()
}

func (c *Client) sendError(message, code string) {
	c.emit(TypeError, ErrorPayload{Message: message, Code: code})
}

func (c *Client) toast(title, description string, destructive bool) {
	p := ToastPayload{Title: title, Description: description}
	if destructive {
		p.Variant = "destructive"
	}
	c.emit(TypeToast, p)
}
