package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"yello-auth/internal/event"
	"yello-auth/internal/model"
)

type ThemeStore interface {
	Theme(ctx context.Context) (string, bool, error)
	SetTheme(ctx context.Context, theme string) error
}

type ThemeService struct {
	mu     sync.Mutex
	store  ThemeStore
	bus    event.Bus
	logger *slog.Logger
}

func NewThemeService(store ThemeStore, bus event.Bus, logger *slog.Logger) *ThemeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThemeService{store: store, bus: bus, logger: logger}
}

// Get returns the persisted preference, or the default when none or an
// unknown value is stored.
func (s *ThemeService) Get(ctx context.Context) (model.Theme, error) {
	raw, ok, err := s.store.Theme(ctx)
	if err != nil {
		return "", err
	}

	theme := model.Theme(raw)
	if !ok || !theme.Valid() {
		return model.DefaultTheme, nil
	}
	return theme, nil
}

func (s *ThemeService) Set(ctx context.Context, theme model.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(ctx, theme)
}

func (s *ThemeService) Toggle(ctx context.Context) (model.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx)
	if err != nil {
		return "", err
	}

	next := current.Next()
	if err := s.setLocked(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

func (s *ThemeService) setLocked(ctx context.Context, theme model.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("%w: unknown theme %q", model.ErrInvalidInput, theme)
	}

	if err := s.store.SetTheme(ctx, string(theme)); err != nil {
		return err
	}

	s.logger.Debug("Theme service: preference saved", "theme", theme)
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeThemeChanged, "", map[string]any{"theme": theme}))
	}
	return nil
}
