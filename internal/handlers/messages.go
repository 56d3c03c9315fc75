package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/umar/familychat/internal/composer"
	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/models"
)

type messageRequest struct {
	Text string `json:"text"`
}

type PresenceLister interface {
	Online(ctx context.Context) ([]string, error)
}

func GetRoomMessages(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "local-only mode: the room is not persisted")
			return
		}
		messages, err := store.RoomMessages(r.Context())
		if err != nil {
			slog.Error("failed to get room messages", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

// PostRoomMessage persists a room message. The new row reaches room
// subscribers through the change channel.
func PostRoomMessage(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "local-only mode: the room is not persisted")
			return
		}
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var created *models.RoomMessage
		submitted, err := composer.New(func(ctx context.Context, text string) error {
			m, err := store.CreateRoomMessage(ctx, currentName(r), text)
			created = m
			return err
		}).SubmitText(r.Context(), req.Text)
		if !submitted {
			writeError(w, http.StatusBadRequest, "text must not be blank")
			return
		}
		if err != nil {
			slog.Error("failed to send room message", "error", err)
			writeError(w, http.StatusInternalServerError, "could not send message")
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetRoomPresence(presence PresenceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if presence == nil {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		names, err := presence.Online(r.Context())
		if err != nil {
			slog.Error("failed to get presence", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, names)
	}
}
