// Package session holds the single process-wide session state. The auth
// orchestrator is its only writer; everyone else reads through Reader.
package session

import (
	"context"
	"log/slog"
	"sync"

	"yello-auth/internal/access"
	"yello-auth/internal/event"
	"yello-auth/internal/localstore"
	"yello-auth/internal/model"
)

type State struct {
	User          *model.AuthUser
	Authenticated bool
	Loading       bool
	Error         string
	ErrorKind     model.ErrorKind
}

// View is the token free projection handed to the presentation layer.
type View struct {
	User          *model.User     `json:"user"`
	Authenticated bool            `json:"authenticated"`
	Loading       bool            `json:"loading"`
	Error         string          `json:"error,omitempty"`
	ErrorKind     model.ErrorKind `json:"errorKind,omitempty"`
}

// Access is the part of the view the route guards decide on.
func (v View) Access() access.View {
	return access.View{Authenticated: v.Authenticated, Loading: v.Loading, User: v.User}
}

type Reader interface {
	Snapshot() State
	View() View
}

type Store struct {
	mu      sync.RWMutex
	state   State
	persist *localstore.Store
	bus     event.Bus
	logger  *slog.Logger
}

// New builds the store and hydrates the persisted {user, authenticated}
// subset. The hydrated session is tentative until the startup check confirms
// the token.
func New(ctx context.Context, persist *localstore.Store, bus event.Bus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{persist: persist, bus: bus, logger: logger}

	snapshot, ok, err := persist.LoadSnapshot(ctx)
	switch {
	case err != nil:
		logger.Warn("Session store: ignoring unreadable persisted session", "error", err)
	case ok && snapshot.User != nil:
		user := *snapshot.User
		s.state.User = &user
		s.state.Authenticated = true
		logger.Info("Session store: hydrated persisted session", "user_id", user.ID, "role", user.Role)
	}

	return s
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.view()
}

func (s *Store) SetUser(ctx context.Context, user *model.AuthUser) {
	s.mutate(ctx, func(st *State) {
		if user == nil {
			st.User = nil
			return
		}
		u := *user
		st.User = &u
	})
}

func (s *Store) SetLoading(ctx context.Context, loading bool) {
	s.mutate(ctx, func(st *State) {
		st.Loading = loading
	})
}

func (s *Store) SetError(ctx context.Context, kind model.ErrorKind, message string) {
	s.mutate(ctx, func(st *State) {
		st.Error = message
		st.ErrorKind = kind
	})
}

func (s *Store) ClearError(ctx context.Context) {
	s.mutate(ctx, func(st *State) {
		st.Error = ""
		st.ErrorKind = ""
	})
}

// Logout clears the user and the error in one update.
func (s *Store) Logout(ctx context.Context) {
	s.mutate(ctx, func(st *State) {
		st.User = nil
		st.Error = ""
		st.ErrorKind = ""
	})
}

func (s *Store) mutate(ctx context.Context, apply func(*State)) {
	s.mu.Lock()
	apply(&s.state)
	s.state.Authenticated = s.state.User != nil

	// Persisted under the lock so snapshots land in mutation order.
	snapshot := localstore.Snapshot{Authenticated: s.state.Authenticated}
	if s.state.User != nil {
		u := *s.state.User
		snapshot.User = &u
	}
	if err := s.persist.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Error("Session store: failed to persist session", "error", err)
	}

	view := s.state.view()
	s.mu.Unlock()

	if s.bus != nil {
		actorID := ""
		if view.User != nil {
			actorID = view.User.ID
		}
		s.bus.Publish(event.New(event.TypeSessionChanged, actorID, view))
	}
}

func (st State) clone() State {
	out := st
	if st.User != nil {
		u := *st.User
		out.User = &u
	}
	return out
}

func (st State) view() View {
	v := View{
		Authenticated: st.Authenticated,
		Loading:       st.Loading,
		Error:         st.Error,
		ErrorKind:     st.ErrorKind,
	}
	if st.User != nil {
		u := st.User.User
		v.User = &u
	}
	return v
}
