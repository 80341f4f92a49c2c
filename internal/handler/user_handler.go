package handler

import (
	"context"
	"net/http"
	"strconv"

	"yello-auth/internal/access"
	"yello-auth/internal/middleware"
	"yello-auth/internal/model"
	"yello-auth/pkg/apierror"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type userLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

type UserHandler struct {
	users userLister
}

func NewUserHandler(users userLister) *UserHandler {
	return &UserHandler{users: users}
}

type profile struct {
	model.User
	DisplayName     string `json:"displayName"`
	RoleDisplayName string `json:"roleDisplayName"`
	Landing         string `json:"landing"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required").WithRedirect(access.PathLogin))
		return
	}

	writeSuccess(w, http.StatusOK, profile{
		User:            *user,
		DisplayName:     access.UserDisplayName(user),
		RoleDisplayName: access.RoleDisplayName(user.Role),
		Landing:         access.LandingPath(user.Role),
	}, nil)
}

func (h *UserHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required").WithRedirect(access.PathLogin))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"role":        user.Role,
		"permissions": access.Permissions(user.Role),
	}, nil)
}

// Directory lists every account for administrators, paginated with
// ?page= and ?limit=.
func (h *UserHandler) Directory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeError(w, apierror.BadRequest("page must be a positive integer", "page"))
		return
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil || limit < 1 || limit > maxPageLimit {
		writeError(w, apierror.BadRequest("limit must be between 1 and 100", "limit"))
		return
	}

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	total := len(users)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	writeSuccess(w, http.StatusOK, model.UserList{Users: users[start:end]}, &model.Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
