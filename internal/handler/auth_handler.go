package handler

import (
	"net/http"

	"yello-auth/internal/access"
	"yello-auth/internal/model"
	"yello-auth/internal/service"
	"yello-auth/internal/session"
	"yello-auth/pkg/apierror"
)

type demoAccountSource interface {
	DemoAccounts() []model.DemoAccount
}

// sessionPayload is the session view plus the page the client should go to next.
type sessionPayload struct {
	session.View
	Redirect string `json:"redirect,omitempty"`
}

type AuthHandler struct {
	service *service.AuthService
	session session.Reader
	demo    demoAccountSource
	locale  string
}

func NewAuthHandler(service *service.AuthService, reader session.Reader, demo demoAccountSource, locale string) *AuthHandler {
	return &AuthHandler{service: service, session: reader, demo: demo, locale: locale}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, h.invalidForm(model.OpLogin, err))
		return
	}

	user, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.payload(access.LandingPath(user.Role)), nil)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, h.invalidForm(model.OpRegister, err))
		return
	}

	user, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, h.payload(access.LandingPath(user.Role)), nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.payload(access.PathLogin), nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.RefreshToken(r.Context()); err != nil {
		if !h.session.View().Authenticated {
			err = redirectTo(err, access.PathLogin)
		}
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.payload(""), nil)
}

func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	authenticated, err := h.service.CheckAuthStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	redirect := access.PathLogin
	if authenticated {
		redirect = access.ResolveLanding(h.session.View().Access()).Redirect
	}
	writeSuccess(w, http.StatusOK, h.payload(redirect), nil)
}

func (h *AuthHandler) DemoAccounts(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{"accounts": h.demo.DemoAccounts()}, nil)
}

func (h *AuthHandler) payload(redirect string) sessionPayload {
	return sessionPayload{View: h.session.View(), Redirect: redirect}
}

func (h *AuthHandler) invalidForm(op model.Operation, err error) error {
	return apierror.New(
		apierror.CodeValidation,
		model.Message(h.locale, op, model.KindValidation),
		err.Error(),
		http.StatusUnprocessableEntity,
	)
}
