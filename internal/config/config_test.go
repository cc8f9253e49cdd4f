package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channel.yaml")
	yamlContent := `
bind_address: "10.0.0.5"
port: 9000
data_store_paths:
  - /srv/data/base
  - /srv/data/override
keep_alive_interval: 5s
session_timeout: 15s
dispatch_workers: 8
log_level: debug
database:
  host: db.internal
  port: 5433
  user: svc
  password: hunter2
  dbname: channel
  sslmode: require
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.BindAddress)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"/srv/data/base", "/srv/data/override"}, cfg.DataStorePaths)
	assert.Equal(t, 5*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 15*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 8, cfg.DispatchWorkers)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadRejectsEmptyDataStorePaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_store_paths: []\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDatabaseConfigDSNIncludesPoolParams(t *testing.T) {
	d := DatabaseConfig{
		Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable",
		MaxConns: 10,
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://u:p@h:5432/d?sslmode=disable")
	assert.Contains(t, dsn, "pool_max_conns=10")
}
