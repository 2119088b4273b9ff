package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.JWTAccessExpiry)
	assert.True(t, cfg.UseRedisLocks)
	assert.Empty(t, cfg.AdminEmails)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Normalizes(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_EMAILS", " Admin@Example.com ,,ops@example.com")
	t.Setenv("FRONTEND_URL", "https://tracker.example.com/")
	t.Setenv("API_URL", "https://api.example.com/")
	t.Setenv("GIN_MODE", "release")
	t.Setenv("IDENTITY_LOCKS_REDIS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, "https://tracker.example.com", cfg.FrontendURL)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.UseRedisLocks)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_ACCESS_EXPIRY", "soon")

	_, err := Load()
	require.Error(t, err)
}
