package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":          "www.example:9000",
		"database_dsn":       "postgres://json",
		"jwt_secret":         "a",
		"jwt_refresh_secret": "b",
		"access_token_ttl":   "15m",
		"refresh_token_ttl":  "72h",
		"smtp_port":          465,
		"s3_bucket":          "bucket",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJSON(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "a", cfg.AccessSecret)
		assert.Equal(t, "b", cfg.RefreshSecret)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
		assert.Equal(t, 72*time.Hour, cfg.RefreshTokenTTL)
		assert.Equal(t, 465, cfg.SMTPPort)
		assert.Equal(t, "bucket", cfg.S3Bucket)
	})

	t.Run("absent keys keep previous values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-c", path}))

		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("no flag, no changes", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234"}
		require.NoError(t, parseJSON(cfg, nil))
		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		assert.Error(t, parseJSON(&Config{}, []string{"-config", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
