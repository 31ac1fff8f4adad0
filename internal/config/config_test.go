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

	assert.Equal(t, "8083", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4000, cfg.Messaging.MaxBodyLength)
	assert.Equal(t, 64, cfg.Realtime.QueueSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Notifications.KafkaBrokers)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
realtime:
  queue_size: 8
  write_timeout: 3s
`), 0o600))
	t.Setenv("MESSAGING_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Realtime.QueueSize)
	assert.Equal(t, 3*time.Second, cfg.Realtime.WriteTimeout)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestValidateRejectsJWTWithoutSecret(t *testing.T) {
	t.Setenv("MESSAGING_AUTH_MODE", "jwt")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}
