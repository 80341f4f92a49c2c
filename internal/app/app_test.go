package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yello-auth/internal/config"
	"yello-auth/internal/model"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

type sessionBody struct {
	User          *model.User `json:"user"`
	Authenticated bool        `json:"authenticated"`
	Loading       bool        `json:"loading"`
	Error         string      `json:"error"`
	Redirect      string      `json:"redirect"`
}

func testConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()
	vars := map[string]string{
		"IDENTITY_LATENCY_MIN": "0s",
		"IDENTITY_LATENCY_MAX": "0s",
		"IDENTITY_BCRYPT_COST": "4",
		"RATE_LIMIT_AUTH_RPM":  "1000",
		"RATE_LIMIT_RPM":       "0",
		"AUTH_CHECK_ON_START":  "false",
		"AUDIT_FILE":           filepath.Join(t.TempDir(), "audit.log"),
	}
	for k, v := range overrides {
		vars[k] = v
	}
	cfg, err := config.FromMap(vars)
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	application, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return application, server
}

func call(t *testing.T, server *httptest.Server, method string, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func login(t *testing.T, server *httptest.Server, email string, password string) sessionBody {
	t.Helper()
	status, env := call(t, server, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, "login %s: %+v", email, env.Error)
	return decodeData[sessionBody](t, env)
}

func TestHealth(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, nil))

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestLoginFlow(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, nil))

	status, env := call(t, server, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decodeData[sessionBody](t, env).Authenticated)

	status, env = call(t, server, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "/login", env.Error.Redirect)

	t.Run("wrong password keeps the error in session", func(t *testing.T) {
		status, env := call(t, server, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: "teacher@yello.com", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, string(model.KindInvalidCredentials), env.Error.Code)
		assert.Equal(t, "Email ou mot de passe incorrect", env.Error.Message)

		_, env = call(t, server, http.MethodGet, "/api/v1/session", nil)
		assert.Equal(t, "Email ou mot de passe incorrect", decodeData[sessionBody](t, env).Error)
	})

	t.Run("malformed form", func(t *testing.T) {
		status, env := call(t, server, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: "teacher"})
		require.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Equal(t, "Veuillez remplir tous les champs", env.Error.Message)
	})

	t.Run("invalid json", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/auth/login", strings.NewReader("{"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	body := login(t, server, "Teacher@Yello.com", "teacher123")
	assert.True(t, body.Authenticated)
	assert.Empty(t, body.Error)
	assert.Equal(t, "/teacher/dashboard", body.Redirect)
	require.NotNil(t, body.User)
	assert.Equal(t, model.RoleTeacher, body.User.Role)

	status, env = call(t, server, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, status)
	me := decodeData[map[string]any](t, env)
	assert.Equal(t, "Amadou Diallo", me["displayName"])
	assert.Equal(t, "Enseignant", me["roleDisplayName"])
	assert.NotContains(t, me, "token")

	status, env = call(t, server, http.MethodGet, "/api/v1/me/permissions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "create_lessons")

	status, env = call(t, server, http.MethodGet, "/api/v1/admin/directory", nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "/dashboard", env.Error.Redirect)
	assert.Equal(t, "Accès non autorisé", env.Error.Message)

	status, env = call(t, server, http.MethodPost, "/api/v1/auth/refresh", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decodeData[sessionBody](t, env).Authenticated)

	status, env = call(t, server, http.MethodPost, "/api/v1/auth/check", nil)
	require.Equal(t, http.StatusOK, status)
	checked := decodeData[sessionBody](t, env)
	assert.True(t, checked.Authenticated)
	assert.Equal(t, "/teacher/dashboard", checked.Redirect)

	status, env = call(t, server, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	out := decodeData[sessionBody](t, env)
	assert.False(t, out.Authenticated)
	assert.Nil(t, out.User)
	assert.Equal(t, "/login", out.Redirect)

	status, env = call(t, server, http.MethodPost, "/api/v1/auth/check", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decodeData[sessionBody](t, env).Authenticated)

	status, env = call(t, server, http.MethodPost, "/api/v1/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(model.KindNoRefreshToken), env.Error.Code)
	assert.Equal(t, "/login", env.Error.Redirect)

	status, _ = call(t, server, http.MethodDelete, "/api/v1/session/error", nil)
	require.Equal(t, http.StatusOK, status)
	_, env = call(t, server, http.MethodGet, "/api/v1/session", nil)
	assert.Empty(t, decodeData[sessionBody](t, env).Error)
}

func TestRegisterFlow(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, map[string]string{"AUTH_LOCALE": "en"}))

	form := model.RegisterRequest{
		Email:           "new.parent@yello.com",
		Password:        "secret1",
		ConfirmPassword: "secret2",
		Name:            "A",
		Role:            model.RoleParent,
	}

	tests := []struct {
		name    string
		mutate  func(*model.RegisterRequest)
		status  int
		code    string
		message string
	}{
		{name: "mismatch", mutate: func(*model.RegisterRequest) {}, status: http.StatusBadRequest, code: string(model.KindPasswordMismatch), message: "Passwords do not match"},
		{name: "weak", mutate: func(r *model.RegisterRequest) { r.Password, r.ConfirmPassword = "12345", "12345" }, status: http.StatusBadRequest, code: string(model.KindWeakPassword)},
		{name: "taken", mutate: func(r *model.RegisterRequest) { r.Email, r.ConfirmPassword = "student@yello.com", "secret1" }, status: http.StatusConflict, code: string(model.KindEmailTaken)},
		{name: "unknown role", mutate: func(r *model.RegisterRequest) { r.Role, r.ConfirmPassword = "janitor", "secret1" }, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := form
			tt.mutate(&req)

			status, env := call(t, server, http.MethodPost, "/api/v1/auth/register", req)
			require.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Error.Message)
			}
		})
	}

	form.ConfirmPassword = form.Password
	status, env := call(t, server, http.MethodPost, "/api/v1/auth/register", form)
	require.Equal(t, http.StatusCreated, status)
	created := decodeData[sessionBody](t, env)
	assert.True(t, created.Authenticated)
	assert.Equal(t, "/parent/dashboard", created.Redirect)
	require.NotNil(t, created.User)
	assert.Equal(t, "school_mock_001", created.User.SchoolID)
	assert.Contains(t, created.User.Avatar, "dicebear")

	// The new account can sign in again after logging out.
	status, _ = call(t, server, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	again := login(t, server, "new.parent@yello.com", "secret1")
	assert.Equal(t, created.User.ID, again.User.ID)
}

func TestAdminDirectoryAndRoutes(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, nil))

	status, env := call(t, server, http.MethodGet, "/api/v1/routes/authorize?path=/teacher/quiz", nil)
	require.Equal(t, http.StatusOK, status)
	decision := decodeData[map[string]any](t, env)
	assert.Equal(t, "redirect", decision["outcome"])
	assert.Equal(t, "/login", decision["redirect"])
	assert.Equal(t, "/teacher/quiz", decision["from"])

	status, _ = call(t, server, http.MethodGet, "/api/v1/routes/authorize", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	login(t, server, "admin@yello.com", "admin123")

	status, env = call(t, server, http.MethodGet, "/api/v1/admin/directory?limit=3&page=2", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 4, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)
	assert.Len(t, decodeData[model.UserList](t, env).Users, 1)

	status, _ = call(t, server, http.MethodGet, "/api/v1/admin/directory?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	_, env = call(t, server, http.MethodGet, "/api/v1/routes/authorize?path=/teacher/quiz", nil)
	assert.Equal(t, "allow", decodeData[map[string]any](t, env)["outcome"])

	_, env = call(t, server, http.MethodGet, "/api/v1/routes/authorize?path=/student/courses", nil)
	denied := decodeData[map[string]any](t, env)
	assert.Equal(t, "/dashboard", denied["redirect"])
	assert.Equal(t, true, denied["unauthorized"])

	_, env = call(t, server, http.MethodGet, "/api/v1/routes/landing", nil)
	assert.Equal(t, "/admin/dashboard", decodeData[map[string]any](t, env)["redirect"])

	status, env = call(t, server, http.MethodGet, "/api/v1/auth/demo-accounts", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "parent@yello.com")
	assert.NotContains(t, string(env.Data), "parent123")
}

func TestAuditTrail(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, nil))

	login(t, server, "teacher@yello.com", "teacher123")
	status, env := call(t, server, http.MethodGet, "/api/v1/admin/audit", nil)
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)

	status, _ = call(t, server, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	login(t, server, "admin@yello.com", "admin123")

	require.Eventually(t, func() bool {
		status, env := call(t, server, http.MethodGet, "/api/v1/admin/audit?type=auth.login", nil)
		if status != http.StatusOK || env.Meta == nil {
			return false
		}
		return env.Meta.Total == 2
	}, 2*time.Second, 20*time.Millisecond)

	status, env = call(t, server, http.MethodGet, "/api/v1/admin/audit?type=auth.logout", nil)
	require.Equal(t, http.StatusOK, status)
	items := decodeData[map[string][]model.AuditEntry](t, env)["items"]
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ActorID)

	status, _ = call(t, server, http.MethodGet, "/api/v1/admin/audit?from=soon", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTheme(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, nil))

	_, env := call(t, server, http.MethodGet, "/api/v1/theme", nil)
	assert.Equal(t, "system", decodeData[model.ThemeRequest](t, env).Theme)

	_, env = call(t, server, http.MethodPost, "/api/v1/theme/toggle", nil)
	assert.Equal(t, "light", decodeData[model.ThemeRequest](t, env).Theme)

	status, _ := call(t, server, http.MethodPut, "/api/v1/theme", model.ThemeRequest{Theme: "dark"})
	require.Equal(t, http.StatusOK, status)
	_, env = call(t, server, http.MethodGet, "/api/v1/theme", nil)
	assert.Equal(t, "dark", decodeData[model.ThemeRequest](t, env).Theme)

	status, _ = call(t, server, http.MethodPut, "/api/v1/theme", model.ThemeRequest{Theme: "sepia"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestSessionSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	cfg := testConfig(t, map[string]string{
		"STORAGE_BACKEND": "file",
		"STORAGE_PATH":    path,
	})

	first, server := newTestApp(t, cfg)
	login(t, server, "teacher@yello.com", "teacher123")
	server.Close()
	first.Close()

	restarted := testConfig(t, map[string]string{
		"STORAGE_BACKEND":     "file",
		"STORAGE_PATH":        path,
		"AUTH_CHECK_ON_START": "true",
	})
	second, server := newTestApp(t, restarted)

	view := second.Session().View()
	require.True(t, view.Authenticated)
	assert.Equal(t, model.RoleTeacher, view.User.Role)

	require.Eventually(t, func() bool {
		v := second.Session().View()
		return !v.Loading && v.Authenticated
	}, 2*time.Second, 10*time.Millisecond)

	status, env := call(t, server, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "teacher@yello.com", decodeData[model.User](t, env).Email)
}

func TestSessionEventsStream(t *testing.T) {
	_, server := newTestApp(t, testConfig(t, nil))

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/session/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var greeting struct {
		Type    string      `json:"type"`
		Payload sessionBody `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "session.changed", greeting.Type)
	assert.False(t, greeting.Payload.Authenticated)

	// The greeting is queued after the hub registered the client, so the
	// login below is guaranteed to reach this connection.
	login(t, server, "student@yello.com", "student123")

	seen := map[string]bool{}
	for !seen["auth.login"] {
		var msg struct {
			Type    string      `json:"type"`
			Payload sessionBody `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		seen[msg.Type] = true
		if msg.Type == "session.changed" && msg.Payload.Authenticated {
			assert.Equal(t, model.RoleStudent, msg.Payload.User.Role)
		}
	}
	assert.True(t, seen["session.changed"])
}
