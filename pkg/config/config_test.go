package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "registry.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  readTimeout: 10s
database:
  driver: postgres
  dsn: "host=localhost user=registry"
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=localhost user=registry", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Unset fields keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REGISTRY_DATABASE_DSN", "file::memory:?cache=shared")
	t.Setenv("REGISTRY_SERVER_ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Database.DSN)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unsupported database driver")

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unsupported log level")
}
