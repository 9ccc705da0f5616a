package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://api.tenderdesk.test"
  timeout: 10
store:
  backend: redis
  redis_addr: "cache:6379"
  redis_db: 2
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.tenderdesk.test", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.Equal(t, "tenderdesk:", cfg.Store.KeyPrefix, "unset keys keep defaults")
	assert.Equal(t, filepath.Dir(path), cfg.StateDir)

	lc := cfg.LogConfig()
	assert.Equal(t, log.LevelDebug, lc.Level)
	assert.Equal(t, log.FormatJSON, lc.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "credentials.enc"), cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "api: [yaml: content"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigParse))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TENDERDESK_API_BASE_URL", "http://override:9000")
	t.Setenv("TENDERDESK_STORE_BACKEND", "memory")
	t.Setenv("TENDERDESK_STORE_PASSPHRASE", "s3cret")
	t.Setenv("TENDERDESK_LOG_LEVEL", "error")
	t.Setenv("TENDERDESK_API_TIMEOUT", "5")

	cfg, err := Load(writeConfig(t, "api:\n  base_url: http://file:8000\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://override:9000", cfg.API.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "s3cret", cfg.Store.Passphrase)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.API.Timeout)
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	t.Setenv("TENDERDESK_API_BASE_URL", "http://override:9000")

	cfg, err := LoadFile(writeConfig(t, "api:\n  base_url: http://file:8000\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://file:8000", cfg.API.BaseURL)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url is required"},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "must start with http"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"file without path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"sqlite without path", func(c *Config) {
			c.Store.Backend = BackendSQLite
			c.Store.SQLitePath = ""
		}, "store.sqlite_path"},
		{"redis db out of range", func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Store.RedisDB = 16
		}, "store.redis_db"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"no state dir", func(c *Config) { c.StateDir = "" }, "state_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default(filepath.Dir(path))
	cfg.API.BaseURL = "https://saved.example"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example", loaded.API.BaseURL)
}
