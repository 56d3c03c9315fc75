package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/umar/familychat/internal/backend"
	"github.com/umar/familychat/internal/composer"
	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/directory"
	"github.com/umar/familychat/internal/feed"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

type startConversationRequest struct {
	Peer string `json:"peer" validate:"required"`
}

// requireStore rejects conversation calls when the backend is missing;
// unlike the room there is no local fallback.
func requireStore(w http.ResponseWriter, store database.Store) bool {
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, backend.ErrNotConfigured.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if err := validate.Var(id, "required,uuid"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func ListConversations(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, store) {
			return
		}
		dir := directory.New(currentName(r), store, nil, slog.Default())
		if err := dir.Reload(r.Context()); err != nil {
			slog.Error("failed to list conversations", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, dir.Filter(r.URL.Query().Get("q")))
	}
}

func StartConversation(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, store) {
			return
		}
		var req startConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "peer is required")
			return
		}

		dir := directory.New(currentName(r), store, nil, slog.Default())
		summary, err := dir.Start(r.Context(), req.Peer)
		if errors.Is(err, directory.ErrInvalidPeer) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			slog.Error("failed to start conversation", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// GetConversationMessages returns the rendered view: deleted messages
// are left out.
func GetConversationMessages(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, store) {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		conv := feed.NewConversationFeed(id, currentName(r), store, nil, slog.Default())
		if err := conv.Load(r.Context()); err != nil {
			slog.Error("failed to get messages", "conversation_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "could not load messages")
			return
		}
		writeJSON(w, http.StatusOK, conv.Visible())
	}
}

func PostConversationMessage(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, store) {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		conv := feed.NewConversationFeed(id, currentName(r), store, nil, slog.Default())
		submitted, err := composer.New(conv.Send).SubmitText(r.Context(), req.Text)
		if !submitted {
			writeError(w, http.StatusBadRequest, "text must not be blank")
			return
		}
		if err != nil {
			slog.Error("failed to send message", "conversation_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "could not send message")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

// DeleteMessage soft-deletes one of the caller's own messages.
func DeleteMessage(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(w, store) {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		m, err := store.SoftDeleteMessage(r.Context(), id, currentName(r), nowUTC())
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		if err != nil {
			slog.Error("failed to delete message", "message_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "could not delete message")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
