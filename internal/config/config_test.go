package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 10, cfg.RateLimit.AuthRPM)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "yello-", cfg.Storage.KeyPrefix)
	assert.Equal(t, TokenModeMock, cfg.Identity.TokenMode)
	assert.Equal(t, 500*time.Millisecond, cfg.Identity.LatencyMin)
	assert.Equal(t, 1500*time.Millisecond, cfg.Identity.LatencyMax)
	assert.Equal(t, "school_mock_001", cfg.Identity.DefaultSchool)
	assert.True(t, cfg.Identity.Seed)
	assert.Equal(t, 10*time.Second, cfg.Auth.OperationTimeout)
	assert.Equal(t, "fr", cfg.Auth.Locale)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "./state/audit.log", cfg.Audit.File)
	assert.False(t, cfg.UsesPostgres())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"CORS_ORIGINS":         "https://app.yello.com, https://admin.yello.com ,",
		"STORAGE_BACKEND":      "Postgres",
		"DATABASE_URL":         "postgres://u:p@localhost:5432/yello",
		"IDENTITY_TOKEN_MODE":  "jwt",
		"IDENTITY_JWT_SECRET":  "a-secret-that-is-long-enough",
		"IDENTITY_LATENCY_MIN": "0s",
		"IDENTITY_LATENCY_MAX": "0s",
		"AUTH_LOCALE":          "EN",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "json",
		"AUDIT_ENABLED":        "false",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.yello.com", "https://admin.yello.com"}, cfg.CORS.Origins)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, TokenModeJWT, cfg.Identity.TokenMode)
	assert.Equal(t, "en", cfg.Auth.Locale)
	assert.Zero(t, cfg.Identity.LatencyMax)
	assert.False(t, cfg.Audit.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{name: "unknown backend", vars: map[string]string{"STORAGE_BACKEND": "s3"}, want: "STORAGE_BACKEND"},
		{name: "postgres without url", vars: map[string]string{"STORAGE_BACKEND": "postgres"}, want: "DATABASE_URL"},
		{name: "postgres directory without url", vars: map[string]string{"IDENTITY_DIRECTORY": "postgres"}, want: "DATABASE_URL"},
		{name: "jwt without secret", vars: map[string]string{"IDENTITY_TOKEN_MODE": "jwt"}, want: "IDENTITY_JWT_SECRET"},
		{name: "inverted latency", vars: map[string]string{"IDENTITY_LATENCY_MIN": "2s", "IDENTITY_LATENCY_MAX": "1s"}, want: "IDENTITY_LATENCY_MIN"},
		{name: "bcrypt cost", vars: map[string]string{"IDENTITY_BCRYPT_COST": "2"}, want: "IDENTITY_BCRYPT_COST"},
		{name: "locale", vars: map[string]string{"AUTH_LOCALE": "de"}, want: "AUTH_LOCALE"},
		{name: "log level", vars: map[string]string{"LOG_LEVEL": "loud"}, want: "LOG_LEVEL"},
		{name: "log format", vars: map[string]string{"LOG_FORMAT": "xml"}, want: "LOG_FORMAT"},
		{name: "bad duration", vars: map[string]string{"SERVER_REQUEST_TIMEOUT": "soon"}, want: "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
