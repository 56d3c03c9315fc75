package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/realtime"
)

type Subscriber interface {
	Subscribe(filter realtime.Filter) *realtime.Subscription
}

// Presence records who has the family room open. It is advisory only.
type Presence interface {
	Join(ctx context.Context, name string) error
	Leave(ctx context.Context, name string) error
	Refresh(ctx context.Context, name string) error
}

// TokenIssuer signs the session token handed out after identification.
type TokenIssuer interface {
	Issue(name string) (string, error)
}

// Hub tracks live sessions and the collaborators they share. Store is nil
// when the backend is not configured.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	Store    database.Store
	Changes  Subscriber
	Presence Presence
	Issuer   TokenIssuer
	log      *slog.Logger
}

func NewHub(store database.Store, changes Subscriber, presence Presence, issuer TokenIssuer, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		Store:      store,
		Changes:    changes,
		Presence:   presence,
		Issuer:     issuer,
		log:        log,
	}
}

// Configured reports whether sessions can reach the backend.
func (h *Hub) Configured() bool { return h.Store != nil }

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.log.Info("client connected", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closeSend()
			}
			h.mu.Unlock()
			h.log.Info("client disconnected", "client_id", client.id)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) join(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.closeSend()
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.closeSend()
		delete(h.clients, id)
	}
}
