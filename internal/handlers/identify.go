package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/umar/familychat/internal/identity"
)

type identifyRequest struct {
	Name string `json:"name" validate:"required"`
}

type identifyResponse struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Identify runs the identity gate for REST clients. Any non-blank name is
// accepted.
func Identify(issuer *identity.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		var gate identity.Gate
		name, err := gate.Submit(req.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		token, err := issuer.Issue(name)
		if err != nil {
			slog.Error("failed to issue token", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, identifyResponse{Name: name, Token: token})
	}
}

func currentName(r *http.Request) string {
	name, _ := identity.NameFrom(r.Context())
	return name
}
