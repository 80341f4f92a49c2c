package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yello-auth/internal/access"
	"yello-auth/internal/config"
	"yello-auth/internal/database"
	"yello-auth/internal/event"
	"yello-auth/internal/handler"
	"yello-auth/internal/identity"
	"yello-auth/internal/kv"
	"yello-auth/internal/localstore"
	"yello-auth/internal/middleware"
	"yello-auth/internal/repository"
	"yello-auth/internal/router"
	"yello-auth/internal/service"
	"yello-auth/internal/session"
	"yello-auth/internal/websocket"
)

const guardRetryAfter = time.Second

type App struct {
	cfg          *config.Config
	server       *http.Server
	auth         *service.AuthService
	session      *session.Store
	logger       *slog.Logger
	cancel       context.CancelFunc
	cleanupFuncs []func()
}

// New wires every component for cfg. Background work is bound to ctx and
// stops on Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(ctx)
	a := &App{cfg: cfg, logger: logger, cancel: cancel}

	if err := a.build(runCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	var db *database.DB
	if cfg.UsesPostgres() {
		a.logger.Info("connecting to PostgreSQL")
		connected, err := database.New(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		db = connected
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure database schema: %w", err)
		}
	}

	backend, err := a.openBackend(ctx, db)
	if err != nil {
		return err
	}

	directory, err := a.openDirectory(db)
	if err != nil {
		return err
	}

	minter, err := a.newMinter()
	if err != nil {
		return err
	}

	identitySvc, err := identity.NewService(directory, minter, identity.Options{
		Latency:         identity.Latency{Min: cfg.Identity.LatencyMin, Max: cfg.Identity.LatencyMax},
		BcryptCost:      cfg.Identity.BcryptCost,
		DefaultSchoolID: cfg.Identity.DefaultSchool,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize identity service: %w", err)
	}
	if cfg.Identity.Seed {
		if err := identitySvc.Seed(ctx, identity.DemoAccounts); err != nil {
			return fmt.Errorf("failed to seed demo accounts: %w", err)
		}
	}

	persist := localstore.New(backend, cfg.Storage.KeyPrefix)
	bus := event.NewBus(a.logger)
	a.session = session.New(ctx, persist, bus, a.logger)

	a.auth = service.NewAuthService(identitySvc, a.session, persist, bus, service.AuthOptions{
		OperationTimeout: cfg.Auth.OperationTimeout,
		Locale:           cfg.Auth.Locale,
	}, a.logger)
	themeSvc := service.NewThemeService(persist, bus, a.logger)

	hub := websocket.NewHub(bus, cfg.CORS.Origins, a.logger)
	go hub.Run(ctx)

	var auditHandler *handler.AuditHandler
	if cfg.Audit.Enabled {
		auditSvc, err := service.NewAuditService(cfg.Audit.File, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize audit service: %w", err)
		}
		auditSvc.Start(ctx, bus)
		auditHandler = handler.NewAuditHandler(auditSvc)
	}

	appRouter := router.New(cfg, middleware.NewSessionGuard(a.session, guardRetryAfter), router.Handlers{
		Auth:    handler.NewAuthHandler(a.auth, a.session, identitySvc, cfg.Auth.Locale),
		Session: handler.NewSessionHandler(a.auth, a.session, hub, a.logger),
		Routes:  handler.NewRouteHandler(access.DefaultRoutes(), a.session),
		Users:   handler.NewUserHandler(identitySvc),
		Theme:   handler.NewThemeHandler(themeSvc),
		Audit:   auditHandler,
	}, a.logger)

	a.server = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	if cfg.Auth.CheckOnStart {
		go a.logStartupCheck(a.auth.StartCheck(ctx))
	}

	a.logger.Info("application wired",
		"storage", cfg.Storage.Backend,
		"directory", cfg.Identity.Directory,
		"token_mode", cfg.Identity.TokenMode,
		"locale", cfg.Auth.Locale,
		"audit", cfg.Audit.Enabled)
	return nil
}

func (a *App) openBackend(ctx context.Context, db *database.DB) (kv.Store, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendFile:
		store, err := kv.NewFile(a.cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session file: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		store, err := kv.NewRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = store.Close() })
		return store, nil
	case config.BackendPostgres:
		return repository.NewKVRepository(db.Pool), nil
	default:
		return kv.NewMemory(), nil
	}
}

func (a *App) openDirectory(db *database.DB) (identity.Directory, error) {
	switch a.cfg.Identity.Directory {
	case config.BackendPostgres:
		return repository.NewUserRepository(db.Pool), nil
	case config.BackendMemory:
		return identity.NewMemoryDirectory(), nil
	default:
		return nil, fmt.Errorf("unknown identity directory %q", a.cfg.Identity.Directory)
	}
}

func (a *App) newMinter() (identity.TokenMinter, error) {
	if a.cfg.Identity.TokenMode != config.TokenModeJWT {
		return identity.MockMinter{}, nil
	}
	minter, err := identity.NewJWTMinter(a.cfg.Identity.JWTSecret, a.cfg.Identity.AccessTTL, a.cfg.Identity.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token minter: %w", err)
	}
	return minter, nil
}

// logStartupCheck reports how the session left over from a previous run was
// revalidated.
func (a *App) logStartupCheck(result <-chan service.CheckResult) {
	outcome := <-result
	if outcome.Err != nil {
		a.logger.Warn("startup session check did not complete", "error", outcome.Err)
		return
	}
	a.logger.Info("startup session check done", "authenticated", outcome.Authenticated)
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Auth() *service.AuthService {
	return a.auth
}

func (a *App) Session() session.Reader {
	return a.session
}

// Close stops background work and releases connections. It is safe to call
// more than once.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-serveErr:
		if ok {
			a.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-stop:
		a.logger.Info("shutdown requested", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	a.logger.Info("server stopped")
	return nil
}
