package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, "bolt", cfg.Storage.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Enrollment.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Server.CheckinInterval)
	assert.Equal(t, "com.apple.mgmt.External.altrii", cfg.Server.Topic)
	assert.Empty(t, cfg.Server.SharedSecret)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
http:
  addr: ":9999"
storage:
  driver: memory
server:
  shared_secret: hunter2
  checkin_interval: 5m
enrollment:
  ttl: 1h
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "hunter2", cfg.Server.SharedSecret)
	assert.Equal(t, 5*time.Minute, cfg.Server.CheckinInterval)
	assert.Equal(t, time.Hour, cfg.Enrollment.TTL)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [not: a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
