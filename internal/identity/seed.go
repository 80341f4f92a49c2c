package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"yello-auth/internal/model"
)

// DemoAccounts are the fixed accounts available on every fresh directory.
var DemoAccounts = []model.DemoAccount{
	{Email: "teacher@yello.com", Password: "teacher123", Name: "Amadou Diallo", Role: model.RoleTeacher},
	{Email: "student@yello.com", Password: "student123", Name: "Fatou Sall", Role: model.RoleStudent},
	{Email: "parent@yello.com", Password: "parent123", Name: "Mariama Ba", Role: model.RoleParent},
	{Email: "admin@yello.com", Password: "admin123", Name: "Ibrahima Ndiaye", Role: model.RoleAdmin},
}

const seedHistory = 365 * 24 * time.Hour

// Seed inserts the demo accounts that are not in the directory yet. Seeded
// users get a creation date somewhere in the past year.
func (s *Service) Seed(ctx context.Context, accounts []model.DemoAccount) error {
	seeded := 0
	for _, demo := range accounts {
		email := NormalizeEmail(demo.Email)

		_, err := s.directory.FindByEmail(ctx, email)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrUserNotFound) {
			return fmt.Errorf("look up demo account %s: %w", email, err)
		}

		now := s.now()
		account, err := s.newAccount(email, demo.Password, demo.Name, demo.Role, "", now)
		if err != nil {
			return fmt.Errorf("build demo account %s: %w", email, err)
		}
		account.User.CreatedAt = now.Add(-time.Duration(rand.Int63n(int64(seedHistory))))

		if err := s.directory.Insert(ctx, account); err != nil && !errors.Is(err, model.ErrUserAlreadyExists) {
			return fmt.Errorf("insert demo account %s: %w", email, err)
		}
		seeded++
	}

	s.demoAccounts = append(s.demoAccounts[:0], accounts...)
	s.logger.Info("Identity service: directory seeded", "accounts", len(accounts), "inserted", seeded)
	return nil
}
