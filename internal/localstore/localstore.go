// Package localstore is the token store: it namespaces the persisted session
// keys on top of a kv backend and owns their encoding.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"yello-auth/internal/kv"
	"yello-auth/internal/model"
)

const DefaultPrefix = "yello-"

const (
	KeyTheme        = "theme"
	KeyUser         = "user"
	KeyToken        = "token"
	KeyRefreshToken = "refresh-token"
)

// Snapshot is the persisted subset of the session state.
type Snapshot struct {
	User          *model.AuthUser `json:"user"`
	Authenticated bool            `json:"authenticated"`
}

type Store struct {
	backend kv.Store
	prefix  string
}

func New(backend kv.Store, prefix string) *Store {
	return &Store{backend: backend, prefix: prefix}
}

func (s *Store) Key(name string) string {
	return s.prefix + name
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyToken)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyRefreshToken)
}

func (s *Store) SaveTokens(ctx context.Context, pair model.TokenPair) error {
	if err := s.backend.Set(ctx, s.Key(KeyToken), pair.AccessToken); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	if err := s.backend.Set(ctx, s.Key(KeyRefreshToken), pair.RefreshToken); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	if err := s.backend.Set(ctx, s.Key(KeyToken), token); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	return nil
}

func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.backend.Remove(ctx, s.Key(KeyToken)); err != nil {
		return fmt.Errorf("remove access token: %w", err)
	}
	if err := s.backend.Remove(ctx, s.Key(KeyRefreshToken)); err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	return nil
}

// LoadSnapshot returns false when nothing was persisted yet.
func (s *Store) LoadSnapshot(ctx context.Context) (Snapshot, bool, error) {
	raw, ok, err := s.backend.Get(ctx, s.Key(KeyUser))
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load session snapshot: %w", err)
	}
	if !ok || raw == "" {
		return Snapshot{}, false, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode session snapshot: %w", err)
	}
	snapshot.Authenticated = snapshot.User != nil

	return snapshot, true, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	if err := s.backend.Set(ctx, s.Key(KeyUser), string(data)); err != nil {
		return fmt.Errorf("save session snapshot: %w", err)
	}
	return nil
}

func (s *Store) Theme(ctx context.Context) (string, bool, error) {
	value, ok, err := s.backend.Get(ctx, s.Key(KeyTheme))
	if err != nil {
		return "", false, fmt.Errorf("load theme: %w", err)
	}
	return value, ok, nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if err := s.backend.Set(ctx, s.Key(KeyTheme), theme); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

func (s *Store) getString(ctx context.Context, name string) (string, error) {
	value, _, err := s.backend.Get(ctx, s.Key(name))
	if err != nil {
		return "", fmt.Errorf("load %s: %w", name, err)
	}
	return value, nil
}
