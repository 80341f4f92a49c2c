package identity

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"yello-auth/internal/model"
)

var fixedNow = time.Date(2025, 9, 1, 8, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, minter TokenMinter) (*Service, *MemoryDirectory) {
	t.Helper()

	directory := NewMemoryDirectory()
	svc, err := NewService(directory, minter, Options{
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return fixedNow },
	}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Seed(context.Background(), DemoAccounts))

	return svc, directory
}

func registration(email string) model.RegisterRequest {
	return model.RegisterRequest{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            "A",
		Role:            model.RoleTeacher,
	}
}

func TestRegisterThenLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, MockMinter{})

	registered, err := svc.Register(ctx, registration("a@b.com"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(registered.ID, "user_"))
	require.Equal(t, model.RoleTeacher, registered.Role)
	require.Equal(t, DefaultSchoolID, registered.SchoolID)
	require.Equal(t, fixedNow, registered.CreatedAt)
	require.Equal(t, fixedNow, registered.UpdatedAt)
	require.Equal(t, "mock_token_"+registered.ID+"_"+formatMillis(fixedNow), registered.AccessToken)
	require.NotEmpty(t, registered.RefreshToken)
	require.Contains(t, registered.Avatar, "seed=A")

	loggedIn, err := svc.Login(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, registered.ID, loggedIn.ID)
	require.Equal(t, model.RoleTeacher, loggedIn.Role)
}

func TestRegisterKeepsGivenSchool(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, MockMinter{})

	req := registration("school@b.com")
	req.SchoolID = "school_042"
	registered, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "school_042", registered.SchoolID)
}

func TestRegisterValidationOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, MockMinter{})

	tests := []struct {
		name string
		req  model.RegisterRequest
		want *model.AuthError
	}{
		{
			name: "mismatch wins over weak password and taken email",
			req:  model.RegisterRequest{Email: "teacher@yello.com", Password: "abc", ConfirmPassword: "abd", Name: "X", Role: model.RoleTeacher},
			want: model.ErrPasswordMismatch,
		},
		{
			name: "weak password wins over taken email",
			req:  model.RegisterRequest{Email: "teacher@yello.com", Password: "abc", ConfirmPassword: "abc", Name: "X", Role: model.RoleTeacher},
			want: model.ErrWeakPassword,
		},
		{
			name: "password length counts characters",
			req:  model.RegisterRequest{Email: "new@yello.com", Password: "ééééé", ConfirmPassword: "ééééé", Name: "X", Role: model.RoleStudent},
			want: model.ErrWeakPassword,
		},
		{
			name: "taken email",
			req:  model.RegisterRequest{Email: "Teacher@Yello.com", Password: "abcdef", ConfirmPassword: "abcdef", Name: "X", Role: model.RoleTeacher},
			want: model.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterTakenEmailKeepsCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, MockMinter{})

	req := registration("teacher@yello.com")
	req.Password, req.ConfirmPassword = "another1", "another1"
	_, err := svc.Register(ctx, req)
	require.ErrorIs(t, err, model.ErrEmailTaken)

	_, err = svc.Login(ctx, "teacher@yello.com", "teacher123")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "teacher@yello.com", "another1")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, MockMinter{})

	_, wrongPassword := svc.Login(ctx, "student@yello.com", "nope")
	_, unknownEmail := svc.Login(ctx, "ghost@yello.com", "nope")

	require.ErrorIs(t, wrongPassword, model.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, model.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLoginRotatesTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := fixedNow
	directory := NewMemoryDirectory()
	svc, err := NewService(directory, MockMinter{}, Options{
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return now },
	}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Seed(ctx, DemoAccounts))

	first, err := svc.Login(ctx, "parent@yello.com", "parent123")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	second, err := svc.Login(ctx, "parent@yello.com", "parent123")
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.Equal(t, now, second.UpdatedAt)

	stored, err := directory.FindByEmail(ctx, "parent@yello.com")
	require.NoError(t, err)
	require.Equal(t, second.TokenPair, stored.User.TokenPair)
}

func TestCurrentUserWithMockTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, MockMinter{})

	t.Run("any mock token resolves to the first teacher", func(t *testing.T) {
		user, err := svc.CurrentUser(ctx, "mock_token_whoever_1")
		require.NoError(t, err)
		require.Equal(t, "teacher@yello.com", user.Email)

		user, err = svc.CurrentUser(ctx, "mock-token-legacy")
		require.NoError(t, err)
		require.Equal(t, model.RoleTeacher, user.Role)
	})

	t.Run("foreign token is invalid", func(t *testing.T) {
		_, err := svc.CurrentUser(ctx, "garbage")
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})
}

func TestRefreshWithMockTokens(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, MockMinter{})

	token, err := svc.Refresh(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, "mock_token_refresh_"+formatMillis(fixedNow), token)
}

func TestJWTMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	minter, err := NewJWTMinter("test-secret", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	directory := NewMemoryDirectory()
	svc, err := NewService(directory, minter, Options{BcryptCost: bcrypt.MinCost}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Seed(ctx, DemoAccounts))

	student, err := svc.Login(ctx, "student@yello.com", "student123")
	require.NoError(t, err)

	t.Run("current user is the token owner", func(t *testing.T) {
		user, err := svc.CurrentUser(ctx, student.AccessToken)
		require.NoError(t, err)
		require.Equal(t, student.ID, user.ID)
		require.Equal(t, model.RoleStudent, user.Role)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := svc.CurrentUser(ctx, student.RefreshToken)
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("refresh mints an access token for the owner", func(t *testing.T) {
		token, err := svc.Refresh(ctx, student.RefreshToken)
		require.NoError(t, err)

		user, err := svc.CurrentUser(ctx, token)
		require.NoError(t, err)
		require.Equal(t, student.ID, user.ID)
	})

	t.Run("refresh rejects tampered tokens", func(t *testing.T) {
		_, err := svc.Refresh(ctx, student.RefreshToken+"x")
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})
}

func TestLatencyHonorsCancellation(t *testing.T) {
	t.Parallel()
	directory := NewMemoryDirectory()
	svc, err := NewService(directory, MockMinter{}, Options{
		BcryptCost: bcrypt.MinCost,
		Latency:    Latency{Min: time.Hour, Max: time.Hour},
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	started := time.Now()
	err = svc.Logout(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), time.Minute)
}

func TestLatencyBounds(t *testing.T) {
	t.Parallel()
	l := Latency{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := l.next()
		require.GreaterOrEqual(t, d, l.Min)
		require.Less(t, d, l.Max)
	}
	require.Equal(t, time.Duration(0), Latency{}.next())
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, directory := newTestService(t, MockMinter{})
	require.NoError(t, svc.Seed(ctx, DemoAccounts))

	users, err := directory.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, len(DemoAccounts))
	for _, user := range users {
		require.Equal(t, DefaultSchoolID, user.SchoolID)
		require.False(t, user.CreatedAt.After(fixedNow))
		require.True(t, user.CreatedAt.After(fixedNow.Add(-seedHistory-time.Second)))
	}
}

func TestDemoAccountsHidePasswords(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, MockMinter{})

	data, err := json.Marshal(svc.DemoAccounts())
	require.NoError(t, err)
	require.Contains(t, string(data), "admin@yello.com")
	require.NotContains(t, string(data), "admin123")
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
