package server

import (
	"net/http"
	"strings"

	"stemboard/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BoardSocketHandler upgrades to a websocket that streams the project's board
// events. Browsers cannot set headers on websocket requests, so the token may
// come in the "token" query parameter.
func (h *APIHandler) BoardSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := h.tokens.Parse(token)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	projectID := mux.Vars(r)["id"]
	if err := h.workspaces.RequireMember(r.Context(), projectID, claims.UserID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	h.hub.Attach(r.Context(), conn, projectID, claims.UserID)
}
