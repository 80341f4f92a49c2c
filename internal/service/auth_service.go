package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"yello-auth/internal/event"
	"yello-auth/internal/model"
	"yello-auth/internal/session"
)

type IdentityProvider interface {
	Login(ctx context.Context, email string, password string) (model.AuthUser, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthUser, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context, token string) (model.AuthUser, error)
}

type SessionStore interface {
	session.Reader
	SetUser(ctx context.Context, user *model.AuthUser)
	SetLoading(ctx context.Context, loading bool)
	SetError(ctx context.Context, kind model.ErrorKind, message string)
	ClearError(ctx context.Context)
	Logout(ctx context.Context)
}

type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	SaveTokens(ctx context.Context, tokens model.TokenPair) error
	SetAccessToken(ctx context.Context, token string) error
	ClearTokens(ctx context.Context) error
}

type AuthOptions struct {
	OperationTimeout time.Duration
	Locale           string
	Now              func() time.Time
}

// AuthService is the only writer of the session state and the token store.
// One operation runs at a time: login, register and refresh fail fast with
// model.ErrBusy while another is in flight, logout and the status check wait.
type AuthService struct {
	identity IdentityProvider
	session  SessionStore
	tokens   TokenStore
	bus      event.Bus
	timeout  time.Duration
	locale   string
	now      func() time.Time
	logger   *slog.Logger

	gate chan struct{}

	checkMu     sync.Mutex
	checkSeq    uint64
	cancelCheck context.CancelFunc
}

func NewAuthService(identity IdentityProvider, sessionStore SessionStore, tokens TokenStore, bus event.Bus, opts AuthOptions, logger *slog.Logger) *AuthService {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 10 * time.Second
	}
	if opts.Locale == "" {
		opts.Locale = model.DefaultLocale
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		identity: identity,
		session:  sessionStore,
		tokens:   tokens,
		bus:      bus,
		timeout:  opts.OperationTimeout,
		locale:   opts.Locale,
		now:      opts.Now,
		logger:   logger,
		gate:     make(chan struct{}, 1),
	}
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthUser, error) {
	if err := s.tryAcquire(); err != nil {
		return model.AuthUser{}, err
	}
	defer s.release()

	return s.authenticate(ctx, model.OpLogin, event.TypeAuthLogin, func(opCtx context.Context) (model.AuthUser, error) {
		return s.identity.Login(opCtx, req.Email, req.Password)
	})
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthUser, error) {
	if err := s.tryAcquire(); err != nil {
		return model.AuthUser{}, err
	}
	defer s.release()

	return s.authenticate(ctx, model.OpRegister, event.TypeAuthRegister, func(opCtx context.Context) (model.AuthUser, error) {
		return s.identity.Register(opCtx, req)
	})
}

// authenticate runs login or register. On failure the error is recorded and
// tokens and any current user are left as they were.
func (s *AuthService) authenticate(ctx context.Context, op model.Operation, done event.Type, call func(context.Context) (model.AuthUser, error)) (model.AuthUser, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stateCtx := context.WithoutCancel(ctx)

	s.session.SetLoading(stateCtx, true)
	defer s.session.SetLoading(stateCtx, false)
	s.session.ClearError(stateCtx)

	user, err := call(opCtx)
	if err != nil {
		return model.AuthUser{}, s.fail(stateCtx, op, err)
	}

	if err := s.tokens.SaveTokens(stateCtx, user.TokenPair); err != nil {
		return model.AuthUser{}, s.fail(stateCtx, op, err)
	}
	s.session.SetUser(stateCtx, &user)

	s.logger.Info("Auth service: authenticated", "operation", op, "user_id", user.ID, "role", user.Role)
	s.publish(done, user.ID, map[string]any{"role": user.Role})
	return user, nil
}

// Logout always ends anonymous. A failing remote logout is only logged.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.logout(ctx)
	return nil
}

func (s *AuthService) logout(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stateCtx := context.WithoutCancel(ctx)

	s.session.SetLoading(stateCtx, true)
	s.session.ClearError(stateCtx)

	userID := ""
	if current := s.session.Snapshot().User; current != nil {
		userID = current.ID
		if current.AccessToken != "" {
			if err := s.identity.Logout(opCtx); err != nil {
				s.logger.Warn("Auth service: remote logout failed, clearing local session anyway", "user_id", userID, "error", err)
			}
		}
	}

	if err := s.tokens.ClearTokens(stateCtx); err != nil {
		s.logger.Error("Auth service: failed to clear persisted tokens", "error", err)
	}
	s.session.Logout(stateCtx)
	s.session.SetLoading(stateCtx, false)

	s.logger.Info("Auth service: logged out", "user_id", userID)
	s.publish(event.TypeAuthLogout, userID, nil)
}

// RefreshToken trades the current user's refresh token for a new access
// token. A failed refresh ends the session.
func (s *AuthService) RefreshToken(ctx context.Context) (string, error) {
	if err := s.tryAcquire(); err != nil {
		return "", err
	}
	defer s.release()

	stateCtx := context.WithoutCancel(ctx)

	current := s.session.Snapshot().User
	if current == nil || current.RefreshToken == "" {
		return "", s.fail(stateCtx, model.OpRefresh, model.NewAuthError(model.KindNoRefreshToken, nil))
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	token, err := s.identity.Refresh(opCtx, current.RefreshToken)
	cancel()
	if err != nil {
		s.logout(stateCtx)
		s.publish(event.TypeAuthRefreshFail, current.ID, nil)
		return "", s.fail(stateCtx, model.OpRefresh, err)
	}

	if err := s.tokens.SetAccessToken(stateCtx, token); err != nil {
		return "", s.fail(stateCtx, model.OpRefresh, err)
	}

	updated := *current
	updated.AccessToken = token
	updated.UpdatedAt = s.now()
	s.session.SetUser(stateCtx, &updated)

	s.publish(event.TypeAuthRefreshed, updated.ID, nil)
	return token, nil
}

// CheckAuthStatus revalidates the persisted access token. A newer check
// cancels an older one still in flight; a cancelled check changes nothing.
// The returned error is only set when the check could not run to completion.
func (s *AuthService) CheckAuthStatus(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	seq := s.beginCheck(cancel)
	defer s.endCheck(seq)

	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()

	stateCtx := context.WithoutCancel(ctx)

	token, err := s.tokens.AccessToken(stateCtx)
	if err != nil {
		s.logger.Error("Auth service: failed to read persisted token", "error", err)
		s.dropStaleLoading(stateCtx)
		return false, err
	}
	if token == "" {
		s.dropStaleLoading(stateCtx)
		return false, nil
	}

	s.session.SetLoading(stateCtx, true)
	defer s.session.SetLoading(stateCtx, false)

	opCtx, cancelOp := context.WithTimeout(ctx, s.timeout)
	user, err := s.identity.CurrentUser(opCtx, token)
	cancelOp()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.logger.Debug("Auth service: status check abandoned", "error", ctxErr)
			return false, ctxErr
		}

		s.logger.Warn("Auth service: persisted session rejected", "kind", model.KindOf(err), "error", err)
		if clearErr := s.tokens.ClearTokens(stateCtx); clearErr != nil {
			s.logger.Error("Auth service: failed to clear persisted tokens", "error", clearErr)
		}
		s.session.Logout(stateCtx)
		s.publish(event.TypeAuthCheckFailed, "", map[string]any{"kind": model.KindOf(err)})
		return false, nil
	}

	s.session.SetUser(stateCtx, &user)
	return true, nil
}

// CheckResult is the outcome of a background status check.
type CheckResult struct {
	Authenticated bool
	Err           error
}

// StartCheck marks the session as loading before it returns whenever a token
// is persisted, then runs CheckAuthStatus in the background. Guards stay
// pending from the first request on until the result is sent.
func (s *AuthService) StartCheck(ctx context.Context) <-chan CheckResult {
	result := make(chan CheckResult, 1)

	token, err := s.tokens.AccessToken(context.WithoutCancel(ctx))
	if err == nil && token != "" {
		s.session.SetLoading(context.WithoutCancel(ctx), true)
	}

	go func() {
		authenticated, err := s.CheckAuthStatus(ctx)
		result <- CheckResult{Authenticated: authenticated, Err: err}
	}()
	return result
}

// dropStaleLoading clears a loading flag raised by StartCheck. Under the gate
// no other operation can own it.
func (s *AuthService) dropStaleLoading(ctx context.Context) {
	if s.session.Snapshot().Loading {
		s.session.SetLoading(ctx, false)
	}
}

func (s *AuthService) ClearError(ctx context.Context) {
	s.session.ClearError(ctx)
}

func (s *AuthService) fail(ctx context.Context, op model.Operation, err error) error {
	kind := model.KindOf(err)
	message := model.Message(s.locale, op, kind)
	s.session.SetError(ctx, kind, message)

	if kind == model.KindUnknown {
		s.logger.Error("Auth service: operation failed", "operation", op, "error", err)
	} else {
		s.logger.Warn("Auth service: operation rejected", "operation", op, "kind", kind)
	}

	return &model.AuthError{Kind: kind, Message: message, Err: err}
}

func (s *AuthService) tryAcquire() error {
	select {
	case s.gate <- struct{}{}:
		return nil
	default:
		return &model.AuthError{Kind: model.KindBusy, Message: model.Message(s.locale, "", model.KindBusy)}
	}
}

func (s *AuthService) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuthService) release() {
	<-s.gate
}

func (s *AuthService) beginCheck(cancel context.CancelFunc) uint64 {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	if s.cancelCheck != nil {
		s.cancelCheck()
	}
	s.checkSeq++
	s.cancelCheck = cancel
	return s.checkSeq
}

func (s *AuthService) endCheck(seq uint64) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	if s.checkSeq == seq {
		s.cancelCheck = nil
	}
}

func (s *AuthService) publish(typ event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(typ, actorID, payload))
}

// IsBusy reports whether err is the overlap rejection.
func IsBusy(err error) bool {
	return errors.Is(err, model.ErrBusy)
}
