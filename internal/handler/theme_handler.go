package handler

import (
	"net/http"

	"yello-auth/internal/model"
	"yello-auth/internal/service"
	"yello-auth/pkg/apierror"
)

type ThemeHandler struct {
	service *service.ThemeService
}

func NewThemeHandler(service *service.ThemeService) *ThemeHandler {
	return &ThemeHandler{service: service}
}

func (h *ThemeHandler) Get(w http.ResponseWriter, r *http.Request) {
	theme, err := h.service.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, model.ThemeRequest{Theme: string(theme)}, nil)
}

func (h *ThemeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var payload model.ThemeRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, apierror.New(apierror.CodeValidation, "invalid theme", err.Error(), http.StatusUnprocessableEntity))
		return
	}

	if err := h.service.Set(r.Context(), model.Theme(payload.Theme)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, payload, nil)
}

func (h *ThemeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	theme, err := h.service.Toggle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, model.ThemeRequest{Theme: string(theme)}, nil)
}
