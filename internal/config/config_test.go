package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointAwayFromLocalFile keeps a developer's licensegate.yml out of the test.
func pointAwayFromLocalFile(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPrefix+"_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yml"))
}

func TestLoadDefaults(t *testing.T) {
	pointAwayFromLocalFile(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 300*time.Second, cfg.Security.ReplayWindow)
	assert.Equal(t, 5*time.Second, cfg.Store.QueryTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Security.HasSecret())
	assert.False(t, cfg.Store.IsConfigured())
	assert.False(t, cfg.Tracing.Stdout)
}

func TestLoadFromEnvironment(t *testing.T) {
	pointAwayFromLocalFile(t)
	t.Setenv("LICENSEGATE_SERVER_PORT", "9090")
	t.Setenv("LICENSEGATE_SECURITY_SECRET_KEY", "s3cret")
	t.Setenv("LICENSEGATE_SECURITY_REPLAY_WINDOW", "120s")
	t.Setenv("LICENSEGATE_STORE_DSN", "postgres://localhost/licenses")
	t.Setenv("LICENSEGATE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Security.SecretKey)
	assert.Equal(t, 2*time.Minute, cfg.Security.ReplayWindow)
	assert.True(t, cfg.Store.IsConfigured())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileFillsCredentialsOnly(t *testing.T) {
	file := filepath.Join(t.TempDir(), "licensegate.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
security:
  secret_key: file-secret
store:
  dsn: postgres://file/licenses
server:
  port: 1
`), 0o600))
	t.Setenv(EnvPrefix+"_CONFIG_FILE", file)

	t.Run("file supplies missing credentials", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "file-secret", cfg.Security.SecretKey)
		assert.Equal(t, "postgres://file/licenses", cfg.Store.DSN)
		assert.Equal(t, 8080, cfg.Server.Port, "non-credential file settings do not apply")
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		t.Setenv("LICENSEGATE_SECURITY_SECRET_KEY", "env-secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "env-secret", cfg.Security.SecretKey)
		assert.Equal(t, "postgres://file/licenses", cfg.Store.DSN)
	})
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "LICENSEGATE_SERVER_PORT", value: "70000"},
		{name: "zero replay window", key: "LICENSEGATE_SECURITY_REPLAY_WINDOW", value: "0s"},
		{name: "unknown log level", key: "LICENSEGATE_LOGGING_LEVEL", value: "verbose"},
		{name: "unknown log format", key: "LICENSEGATE_LOGGING_FORMAT", value: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pointAwayFromLocalFile(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
