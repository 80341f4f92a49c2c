package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"yello-auth/internal/access"
	"yello-auth/internal/model"
	"yello-auth/internal/session"
)

type contextKey string

const sessionUserContextKey contextKey = "session_user"

// SessionGuard gates API routes on the process session the same way the
// route guard gates pages.
type SessionGuard struct {
	reader     session.Reader
	retryAfter time.Duration
}

func NewSessionGuard(reader session.Reader, retryAfter time.Duration) *SessionGuard {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return &SessionGuard{reader: reader, retryAfter: retryAfter}
}

func (g *SessionGuard) RequireSession(next http.Handler) http.Handler {
	return g.require(access.Requirement{RequireAuth: true}, next)
}

func (g *SessionGuard) RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	req := access.Requirement{RequireAuth: true, Roles: roles}
	return func(next http.Handler) http.Handler {
		return g.require(req, next)
	}
}

func (g *SessionGuard) require(req access.Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view := g.reader.View()
		decision := access.Authorize(view.Access(), r.URL.Path, req)

		switch {
		case decision.Outcome == access.OutcomePending:
			w.Header().Set("Retry-After", strconv.Itoa(int(g.retryAfter.Seconds())))
			writeGuardError(w, http.StatusServiceUnavailable, "SESSION_PENDING", "session check in progress", "")
			return
		case decision.Unauthorized:
			writeGuardError(w, http.StatusForbidden, "FORBIDDEN", decision.Error, decision.Redirect)
			return
		case !decision.Allowed():
			writeGuardError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", decision.Redirect)
			return
		}

		ctx := context.WithValue(r.Context(), sessionUserContextKey, view.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the user admitted by the guard.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(sessionUserContextKey).(*model.User)
	return user, ok && user != nil
}

func writeGuardError(w http.ResponseWriter, status int, code string, message string, redirect string) {
	writeJSON(w, status, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:     code,
			Message:  message,
			Redirect: redirect,
		},
	})
}
