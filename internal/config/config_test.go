package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Backend.Type)
	assert.Equal(t, "strata.db", cfg.Backend.Path)
	assert.True(t, cfg.Security.ValidateSQL)
	assert.True(t, cfg.Security.AllowCustomSQL)
	assert.Equal(t, 30, cfg.QueryTimeoutSeconds)
	assert.Equal(t, 10000, cfg.MaxRows)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	content := `
log_level: debug
backend:
  type: postgres
  host: db.internal
  port: 6432
  database: analytics
  user: reader
  pool_min_conns: 2
  pool_max_conns: 8
contract_path: contracts/main.cue
security:
  validate_sql: true
  allow_custom_sql: false
query_timeout_seconds: 45
max_rows: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Backend.Type)
	assert.Equal(t, "db.internal", cfg.Backend.Host)
	assert.Equal(t, 6432, cfg.Backend.Port)
	assert.Equal(t, int32(2), cfg.Backend.PoolMin)
	assert.Equal(t, int32(8), cfg.Backend.PoolMax)
	assert.Equal(t, "contracts/main.cue", cfg.ContractPath)
	assert.False(t, cfg.Security.AllowCustomSQL)
	assert.Equal(t, 45, cfg.QueryTimeoutSeconds)
	assert.Equal(t, 500, cfg.MaxRows)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Backend.Type)
	assert.Equal(t, 30, cfg.QueryTimeoutSeconds)
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STRATA_LOG_LEVEL", "error")
	t.Setenv("STRATA_BACKEND", "warehouse")
	t.Setenv("STRATA_WAREHOUSE_ENDPOINT", "https://wh.internal")
	t.Setenv("STRATA_WAREHOUSE_API_KEY", "wh-key")
	t.Setenv("STRATA_QUERY_TIMEOUT_SECONDS", "90")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "warehouse", cfg.Backend.Type)
	assert.Equal(t, "https://wh.internal", cfg.Backend.Endpoint)
	assert.Equal(t, "wh-key", cfg.Backend.APIKey)
	assert.Equal(t, 90, cfg.QueryTimeoutSeconds)
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	t.Setenv("STRATA_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_InvalidTimeoutOverrideIgnored(t *testing.T) {
	t.Setenv("STRATA_QUERY_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.QueryTimeoutSeconds)
}
