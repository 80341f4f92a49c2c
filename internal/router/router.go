package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"yello-auth/internal/config"
	"yello-auth/internal/handler"
	"yello-auth/internal/middleware"
	"yello-auth/internal/model"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Routes  *handler.RouteHandler
	Users   *handler.UserHandler
	Theme   *handler.ThemeHandler
	Audit   *handler.AuditHandler // nil when the audit trail is disabled
}

func New(cfg *config.Config, guard *middleware.SessionGuard, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimit.RPM, cfg.RateLimit.AuthRPM)

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORS.Origins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		// The event stream hijacks the connection and cannot sit behind the
		// buffering timeout handler.
		api.Get("/session/events", h.Session.Events)

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.Server.RequestTimeout))

			api.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.Post("/register", h.Auth.Register)
				auth.Post("/logout", h.Auth.Logout)
				auth.Post("/refresh", h.Auth.Refresh)
				auth.Post("/check", h.Auth.Check)
				auth.Get("/demo-accounts", h.Auth.DemoAccounts)
			})

			api.Get("/session", h.Session.Get)
			api.Delete("/session/error", h.Session.ClearError)

			api.Get("/routes/authorize", h.Routes.Authorize)
			api.Get("/routes/landing", h.Routes.Landing)

			api.With(guard.RequireSession).Get("/me", h.Users.Me)
			api.With(guard.RequireSession).Get("/me/permissions", h.Users.Permissions)
			api.With(guard.RequireRoles(model.RoleAdmin)).Get("/admin/directory", h.Users.Directory)
			if h.Audit != nil {
				api.With(guard.RequireRoles(model.RoleAdmin)).Get("/admin/audit", h.Audit.List)
			}

			api.Get("/theme", h.Theme.Get)
			api.Put("/theme", h.Theme.Set)
			api.Post("/theme/toggle", h.Theme.Toggle)
		})
	})

	return r
}
