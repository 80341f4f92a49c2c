package handler

import (
	"net/http"
	"strings"

	"yello-auth/internal/access"
	"yello-auth/internal/session"
	"yello-auth/pkg/apierror"
)

type RouteHandler struct {
	routes  *access.Routes
	session session.Reader
}

func NewRouteHandler(routes *access.Routes, reader session.Reader) *RouteHandler {
	return &RouteHandler{routes: routes, session: reader}
}

// Authorize answers whether the current session may render ?path=.
func (h *RouteHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeError(w, apierror.BadRequest("path is required", "path"))
		return
	}

	writeSuccess(w, http.StatusOK, h.routes.Decide(h.session.View().Access(), path), nil)
}

func (h *RouteHandler) Landing(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, access.ResolveLanding(h.session.View().Access()), nil)
}
