package main

import (
	"github.com/gorilla/mux"
	"github.com/umar/familychat/internal/chat"
	"github.com/umar/familychat/internal/config"
	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/handlers"
	"github.com/umar/familychat/internal/identity"
	"github.com/umar/familychat/internal/middleware"
)

// newRouter mounts every route. OPTIONS is allowed on each route so that
// preflights reach the CORS middleware instead of a bare 405.
func newRouter(cfg config.Config, store database.Store, hub *chat.Hub, issuer *identity.Issuer, presence handlers.PresenceLister) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(cfg.CORSOrigin))
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Public routes
	router.HandleFunc("/health", handlers.Health).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/config", handlers.Config(cfg.Configured())).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/identify", handlers.Identify(issuer)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/room/presence", handlers.GetRoomPresence(presence)).Methods("GET", "OPTIONS")

	// WebSocket
	router.HandleFunc("/ws", chat.ServeWS(hub, cfg.CORSOrigin)).Methods("GET")

	// Identified routes
	identified := router.PathPrefix("/api").Subrouter()
	identified.Use(identity.Middleware(issuer))

	identified.HandleFunc("/room/messages", handlers.GetRoomMessages(store)).Methods("GET", "OPTIONS")
	identified.HandleFunc("/room/messages", handlers.PostRoomMessage(store)).Methods("POST", "OPTIONS")
	identified.HandleFunc("/conversations", handlers.ListConversations(store)).Methods("GET", "OPTIONS")
	identified.HandleFunc("/conversations", handlers.StartConversation(store)).Methods("POST", "OPTIONS")
	identified.HandleFunc("/conversations/{id}/messages", handlers.GetConversationMessages(store)).Methods("GET", "OPTIONS")
	identified.HandleFunc("/conversations/{id}/messages", handlers.PostConversationMessage(store)).Methods("POST", "OPTIONS")
	identified.HandleFunc("/messages/{id}", handlers.DeleteMessage(store)).Methods("DELETE", "OPTIONS")

	return router
}
