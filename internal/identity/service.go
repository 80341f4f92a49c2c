// Package identity is the user directory and credential authority: it checks
// passwords, mints token pairs and resolves tokens back to users, with a
// simulated network delay in front of every call.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"yello-auth/internal/model"
)

const (
	DefaultSchoolID   = "school_mock_001"
	MinPasswordLength = 6

	avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="
	refreshOwner  = "refresh"
)

type Options struct {
	Latency         Latency
	BcryptCost      int
	DefaultSchoolID string
	Now             func() time.Time
}

type Service struct {
	directory       Directory
	minter          TokenMinter
	latency         Latency
	bcryptCost      int
	defaultSchoolID string
	now             func() time.Time
	dummyHash       []byte
	demoAccounts    []model.DemoAccount
	logger          *slog.Logger
}

func NewService(directory Directory, minter TokenMinter, opts Options, logger *slog.Logger) (*Service, error) {
	if directory == nil {
		return nil, errors.New("identity directory is required")
	}
	if minter == nil {
		minter = MockMinter{}
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.DefaultSchoolID == "" {
		opts.DefaultSchoolID = DefaultSchoolID
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Compared against when the email is unknown so both failure paths cost one bcrypt check.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare credential hashing: %w", err)
	}

	return &Service{
		directory:       directory,
		minter:          minter,
		latency:         opts.Latency,
		bcryptCost:      opts.BcryptCost,
		defaultSchoolID: opts.DefaultSchoolID,
		now:             opts.Now,
		dummyHash:       dummyHash,
		logger:          logger,
	}, nil
}

func (s *Service) Login(ctx context.Context, email string, password string) (model.AuthUser, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return model.AuthUser{}, err
	}

	account, err := s.directory.FindByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return model.AuthUser{}, model.NewAuthError(model.KindInvalidCredentials, nil)
	}
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return model.AuthUser{}, model.NewAuthError(model.KindInvalidCredentials, nil)
	}

	now := s.now()
	tokens, err := s.mintPair(account.User.ID, now)
	if err != nil {
		return model.AuthUser{}, err
	}

	updated, err := s.directory.UpdateTokens(ctx, account.User.ID, tokens, now)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("store token pair: %w", err)
	}

	s.logger.Debug("Identity service: login", "user_id", updated.User.ID, "role", updated.User.Role)
	return updated.User, nil
}

func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.AuthUser, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return model.AuthUser{}, err
	}

	if req.Password != req.ConfirmPassword {
		return model.AuthUser{}, model.NewAuthError(model.KindPasswordMismatch, nil)
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		return model.AuthUser{}, model.NewAuthError(model.KindWeakPassword, nil)
	}
	if !req.Role.Valid() {
		return model.AuthUser{}, model.NewAuthError(model.KindValidation, fmt.Errorf("unknown role %q", req.Role))
	}

	email := NormalizeEmail(req.Email)
	if _, err := s.directory.FindByEmail(ctx, email); err == nil {
		return model.AuthUser{}, model.NewAuthError(model.KindEmailTaken, nil)
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return model.AuthUser{}, fmt.Errorf("find account: %w", err)
	}

	account, err := s.newAccount(email, req.Password, req.Name, req.Role, req.SchoolID, s.now())
	if err != nil {
		return model.AuthUser{}, err
	}

	if err := s.directory.Insert(ctx, account); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.AuthUser{}, model.NewAuthError(model.KindEmailTaken, nil)
		}
		return model.AuthUser{}, fmt.Errorf("insert account: %w", err)
	}

	s.logger.Info("Identity service: account registered", "user_id", account.User.ID, "role", account.User.Role)
	return account.User, nil
}

// Refresh mints a new access token. With the mock minter the refresh token is
// not tied to any user and the call always succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return "", err
	}

	subject, err := s.minter.Resolve(refreshToken, TokenRefresh)
	if err != nil {
		return "", model.NewAuthError(model.KindInvalidToken, err)
	}

	owner := refreshOwner
	if subject != "" {
		account, err := s.directory.FindByID(ctx, subject)
		if errors.Is(err, model.ErrUserNotFound) {
			return "", model.NewAuthError(model.KindInvalidToken, err)
		}
		if err != nil {
			return "", fmt.Errorf("find account: %w", err)
		}
		owner = account.User.ID
	}

	token, err := s.minter.Mint(owner, TokenAccess, s.now())
	if err != nil {
		return "", fmt.Errorf("mint access token: %w", err)
	}
	return token, nil
}

// Logout holds no server side state; it only pays the round trip.
func (s *Service) Logout(ctx context.Context) error {
	return s.latency.Wait(ctx)
}

// CurrentUser resolves an access token. When the minter cannot name the owner
// (mock tokens) the first teacher in the directory is returned.
func (s *Service) CurrentUser(ctx context.Context, token string) (model.AuthUser, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return model.AuthUser{}, err
	}

	subject, err := s.minter.Resolve(token, TokenAccess)
	if err != nil {
		return model.AuthUser{}, model.NewAuthError(model.KindInvalidToken, err)
	}

	if subject == "" {
		account, err := s.directory.FirstByRole(ctx, model.RoleTeacher)
		if err != nil {
			return model.AuthUser{}, model.NewAuthError(model.KindUnknown, err)
		}
		return account.User, nil
	}

	account, err := s.directory.FindByID(ctx, subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthUser{}, model.NewAuthError(model.KindInvalidToken, err)
	}
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("find account: %w", err)
	}
	return account.User, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) DemoAccounts() []model.DemoAccount {
	out := make([]model.DemoAccount, len(s.demoAccounts))
	copy(out, s.demoAccounts)
	return out
}

func (s *Service) newAccount(email string, password string, name string, role model.Role, schoolID string, now time.Time) (model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}

	id := NewUserID(now)
	tokens, err := s.mintPair(id, now)
	if err != nil {
		return model.Account{}, err
	}

	if strings.TrimSpace(schoolID) == "" {
		schoolID = s.defaultSchoolID
	}

	return model.Account{
		User: model.AuthUser{
			User: model.User{
				ID:        id,
				Email:     email,
				Name:      name,
				Role:      role,
				SchoolID:  schoolID,
				Avatar:    avatarBaseURL + url.QueryEscape(name),
				CreatedAt: now,
				UpdatedAt: now,
			},
			TokenPair: tokens,
		},
		PasswordHash: string(hash),
	}, nil
}

func (s *Service) mintPair(userID string, now time.Time) (model.TokenPair, error) {
	access, err := s.minter.Mint(userID, TokenAccess, now)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.minter.Mint(userID, TokenRefresh, now)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("mint refresh token: %w", err)
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// NewUserID returns user_<millis>_<9 random chars>.
func NewUserID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("user_%d_%s", now.UnixMilli(), suffix)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
