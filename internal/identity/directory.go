package identity

import (
	"context"
	"sync"
	"time"

	"yello-auth/internal/model"
)

// Directory is the user and credential store behind the identity service.
// Lookups return model.ErrUserNotFound; Insert returns
// model.ErrUserAlreadyExists for a known email.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	FindByID(ctx context.Context, id string) (model.Account, error)
	FirstByRole(ctx context.Context, role model.Role) (model.Account, error)
	Insert(ctx context.Context, account model.Account) error
	UpdateTokens(ctx context.Context, id string, tokens model.TokenPair, updatedAt time.Time) (model.Account, error)
	List(ctx context.Context) ([]model.User, error)
}

// MemoryDirectory keeps accounts in insertion order for the life of the process.
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts []model.Account
	byEmail  map[string]int
	byID     map[string]int
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byEmail: map[string]int{},
		byID:    map[string]int{},
	}
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byEmail[email]
	if !ok {
		return model.Account{}, model.ErrUserNotFound
	}
	return d.accounts[idx], nil
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byID[id]
	if !ok {
		return model.Account{}, model.ErrUserNotFound
	}
	return d.accounts[idx], nil
}

func (d *MemoryDirectory) FirstByRole(_ context.Context, role model.Role) (model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, account := range d.accounts {
		if account.User.Role == role {
			return account, nil
		}
	}
	return model.Account{}, model.ErrUserNotFound
}

func (d *MemoryDirectory) Insert(_ context.Context, account model.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byEmail[account.User.Email]; exists {
		return model.ErrUserAlreadyExists
	}
	if _, exists := d.byID[account.User.ID]; exists {
		return model.ErrUserAlreadyExists
	}

	d.accounts = append(d.accounts, account)
	idx := len(d.accounts) - 1
	d.byEmail[account.User.Email] = idx
	d.byID[account.User.ID] = idx
	return nil
}

func (d *MemoryDirectory) UpdateTokens(_ context.Context, id string, tokens model.TokenPair, updatedAt time.Time) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx, ok := d.byID[id]
	if !ok {
		return model.Account{}, model.ErrUserNotFound
	}

	d.accounts[idx].User.TokenPair = tokens
	d.accounts[idx].User.UpdatedAt = updatedAt
	return d.accounts[idx], nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]model.User, 0, len(d.accounts))
	for _, account := range d.accounts {
		users = append(users, account.User.User)
	}
	return users, nil
}
