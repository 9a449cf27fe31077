package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_Variables(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("RATE_LIMIT_RPM", "10")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg, []string{"-env", filepath.Join(t.TempDir(), "missing.env")}))

	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, 10, cfg.RateLimitRPM)
}

func TestParseEnv_BadValues(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "forever")
	t.Setenv("SMTP_PORT", "smtp")

	cfg := &Config{}
	err := parseEnv(cfg, []string{"-env", filepath.Join(t.TempDir(), "missing.env")})
	require.Error(t, err)
	assert.ErrorContains(t, err, "ACCESS_TOKEN_TTL")
	assert.ErrorContains(t, err, "SMTP_PORT")
}

func TestParseEnv_DotenvFile(t *testing.T) {
	const key = "LAPLINK_TEST_ADMIN_EMAIL_UNUSED"
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_EMAIL=dotenv@example.com\n"+key+"=1\n"), 0o600))

	prev, had := os.LookupEnv("ADMIN_EMAIL")
	require.NoError(t, os.Unsetenv("ADMIN_EMAIL"))
	t.Cleanup(func() {
		_ = os.Unsetenv(key)
		if had {
			_ = os.Setenv("ADMIN_EMAIL", prev)
		} else {
			_ = os.Unsetenv("ADMIN_EMAIL")
		}
	})

	cfg := &Config{}
	require.NoError(t, parseEnv(cfg, []string{"-env", path}))
	assert.Equal(t, "dotenv@example.com", cfg.AdminEmail)
}
