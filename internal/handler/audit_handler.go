package handler

import (
	"net/http"
	"strings"

	"yello-auth/internal/model"
	"yello-auth/pkg/apierror"
)

type auditQuerier interface {
	Query(query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type AuditHandler struct {
	audit auditQuerier
}

func NewAuditHandler(audit auditQuerier) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List filters the auth audit trail by ?type=, ?actor_id=, ?from= and ?to=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, apierror.BadRequest("page must be an integer", "page"))
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, apierror.BadRequest("limit must be an integer", "limit"))
		return
	}

	items, meta, err := h.audit.Query(model.AuditQuery{
		Type:    strings.TrimSpace(query.Get("type")),
		ActorID: strings.TrimSpace(query.Get("actor_id")),
		From:    strings.TrimSpace(query.Get("from")),
		To:      strings.TrimSpace(query.Get("to")),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": items}, &meta)
}
