package handler

import (
	"log/slog"
	"net/http"

	"yello-auth/internal/event"
	"yello-auth/internal/service"
	"yello-auth/internal/session"
	"yello-auth/internal/websocket"
)

type SessionHandler struct {
	service *service.AuthService
	session session.Reader
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewSessionHandler(service *service.AuthService, reader session.Reader, hub *websocket.Hub, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, session: reader, hub: hub, logger: logger}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.session.View(), nil)
}

func (h *SessionHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.service.ClearError(r.Context())
	writeSuccess(w, http.StatusOK, h.session.View(), nil)
}

// Events upgrades to a websocket. The first frame is the current session so
// the client never waits for the next change to render.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	view := h.session.View()
	actorID := ""
	if view.User != nil {
		actorID = view.User.ID
	}

	if err := h.hub.Serve(w, r, event.New(event.TypeSessionChanged, actorID, view)); err != nil {
		// The upgrader already answered the request.
		h.logger.Warn("Session handler: websocket upgrade failed", "error", err)
	}
}
