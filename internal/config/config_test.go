package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "wazuh-alerts-*", cfg.OpenSearch.Index)
	assert.Equal(t, 5*time.Second, cfg.Pipelines.Alerts.Interval)
	assert.Equal(t, 50, cfg.Pipelines.Alerts.PageSize)
	assert.Equal(t, 100, cfg.Pipelines.Alerts.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.Pipelines.Agents.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Pipelines.OfflineAfter)
	assert.Equal(t, 64, cfg.Hub.SendBuffer)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Syslog.Enabled)
	assert.Equal(t, ":1514", cfg.Syslog.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soclens.yaml")
	content := `
server:
  port: 9090
pipelines:
  alerts:
    interval: 2s
    page_size: 25
opensearch:
  index: custom-alerts-*
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Pipelines.Alerts.Interval)
	assert.Equal(t, 25, cfg.Pipelines.Alerts.PageSize)
	assert.Equal(t, "custom-alerts-*", cfg.OpenSearch.Index)
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Pipelines.Alerts.CacheSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SOCLENS_SERVER_PORT", "7070")
	t.Setenv("SOCLENS_OPENSEARCH_URL", "https://indexer:9200")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://indexer:9200", cfg.OpenSearch.URL)
}

func TestPostgresConnString(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, User: "soclens", Password: "secret",
		Database: "soclens", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://soclens:secret@db:5432/soclens?sslmode=disable", p.ConnString())
}
