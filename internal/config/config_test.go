package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Backend.Mode)
	assert.Equal(t, 10*time.Second, cfg.Backend.CallTimeout)
	assert.Equal(t, "Qwen2.5-0.5B-Instruct", cfg.Model.Local.ModelName)
	assert.Equal(t, "", cfg.Database.DSN())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
backend:
  mode: remote
  base_url: http://api.example.test
  call_timeout: 3s
database:
  host: db
  port: 5432
  user: app
  password: pw
  dbname: lingo
  sslmode: disable
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "remote", cfg.Backend.Mode)
	assert.Equal(t, "http://api.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.CallTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=lingo sslmode=disable", cfg.Database.DSN())
	// untouched sections keep their defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  mode: carrier-pigeon\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("LINGO_JWT_SECRET", "from-env")
	t.Setenv("GEMINI_API_KEY", "key-123")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "key-123", cfg.Model.GeminiAPIKey)
}
