package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("ADMIN_EMAILS", "")
	t.Setenv("MIGRATIONS_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, DefaultTokenTTL, cfg.TokenTTL)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	assert.Empty(t, cfg.AdminEmails)
	assert.False(t, cfg.IsProduction())
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("TOKEN_TTL", "24h")
	t.Setenv("ADMIN_EMAILS", " Boss@Example.com, ,ops@example.com ")
	t.Setenv("ENV", "production")
	t.Setenv("GOOGLE_CLIENT_ID", "club-web.apps.googleusercontent.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"boss@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "club-web.apps.googleusercontent.com", cfg.GoogleClientID)
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("TOKEN_TTL", "a month")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("TOKEN_TTL", "-1h")
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")

	assert.NoError(t, (&Config{DatabaseURL: "postgres://x", JWTSecret: "s"}).Validate())
}
