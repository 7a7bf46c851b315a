package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "districtwatch.db", cfg.Store.SQLitePath)
	assert.Equal(t, "district", cfg.Geo.DistrictName)
	assert.Equal(t, "district_buffer", cfg.Geo.BufferName)
	assert.InDelta(t, 0.5, cfg.Geo.BufferKm, 0.001)
	assert.Equal(t, 10000, cfg.Batch.ChunkSize)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.InDelta(t, 20, cfg.Validator.MissingCoordHighPct, 0.001)
	assert.InDelta(t, 10, cfg.Validator.MissingCoordMediumPct, 0.001)
	assert.InDelta(t, 10, cfg.Validator.InsideHighPct, 0.001)
	assert.InDelta(t, 90, cfg.Validator.OutsideLowPct, 0.001)
	assert.InDelta(t, 35.8, cfg.Validator.MetroMinLat, 0.001)
	assert.Equal(t, 1000, cfg.Ingest.PageSize)
	assert.Equal(t, 3, cfg.Ingest.MaxRetries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/districtwatch
geo:
  buffer_km: 1.0
log:
  level: debug
  format: console
batch:
  chunk_size: 500
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 1.0, cfg.Geo.BufferKm, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Batch.ChunkSize)
	// Defaults still apply for unset values
	assert.Equal(t, "district", cfg.Geo.DistrictName)
	assert.Equal(t, 4, cfg.Batch.Workers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DISTRICTWATCH_STORE_DRIVER", "sqlite")
	t.Setenv("DISTRICTWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("DISTRICTWATCH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Geo.BufferKm = 0.5
	cfg.Batch.ChunkSize = 10000
	cfg.Batch.Workers = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateIngest(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.base_url is required")

	cfg.Ingest.BaseURL = "https://data.example.gov/resource/crimes.json"
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateCategorize(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("categorize"))

	cfg.Geo.BufferKm = 0
	err := cfg.Validate("categorize")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geo.buffer_km must be > 0")
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("categorize")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/districtwatch"
	assert.NoError(t, cfg.Validate("categorize"))
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateChunkBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.ChunkSize = 0
	err := cfg.Validate("categorize")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.chunk_size must be between 1 and 100000")

	cfg.Batch.ChunkSize = 100001
	err = cfg.Validate("categorize")
	assert.Error(t, err)

	cfg.Batch.ChunkSize = 100000
	assert.NoError(t, cfg.Validate("categorize"))

	cfg.Batch.Workers = 65
	err = cfg.Validate("categorize")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.workers must be between 1 and 64")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
