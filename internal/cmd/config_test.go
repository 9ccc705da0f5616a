package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tenderdesk/internal/config"
	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/exitcode"
)

func TestConfigPath(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun(t, "", "config", "path")
	assert.Equal(t, c.configPath, strings.TrimSpace(out))
}

func TestConfigInit(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out := c.mustRun(t, "", "config", "init", "--config", path)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, cfg.Store.Backend)
	assert.Equal(t, filepath.Dir(path), cfg.StateDir)

	_, err = c.run(t, "", "config", "init", "--config", path)
	require.Error(t, err)
	assert.Equal(t, exitcode.ConfigError, exitcode.DetermineExitCode(err))

	c.mustRun(t, "", "config", "init", "--config", path, "--force")
}

func TestConfigGetSet(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, c.backend.URL(), strings.TrimSpace(c.mustRun(t, "", "config", "get", "api.base_url")))

	c.mustRun(t, "", "config", "set", "api.timeout", "12")
	assert.Equal(t, "12", strings.TrimSpace(c.mustRun(t, "", "config", "get", "api.timeout")))

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{name: "unknown key", args: []string{"config", "get", "api.nope"}, code: errors.ErrCodeConfigInvalid},
		{name: "secret", args: []string{"config", "get", "store.passphrase"}, code: errors.ErrCodeConfigInvalid},
		{name: "not a number", args: []string{"config", "set", "api.timeout", "soon"}, code: errors.ErrCodeConfigInvalid},
		{name: "invalid backend", args: []string{"config", "set", "store.backend", "floppy"}, code: errors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(t, "", tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), err.Error())
		})
	}

	// A rejected set leaves the file untouched.
	assert.Equal(t, config.BackendSQLite, strings.TrimSpace(c.mustRun(t, "", "config", "get", "store.backend")))
}

func TestConfigViewRedactsSecrets(t *testing.T) {
	c := newCLI(t)
	c.mustRun(t, "", "config", "set", "store.passphrase", "correct-horse-battery")

	out := c.mustRun(t, "", "config", "view")
	assert.Contains(t, out, "# "+c.configPath)
	assert.Contains(t, out, "corr****")
	assert.NotContains(t, out, "correct-horse-battery")

	out = c.mustRun(t, "", "config", "view", "--format", "json")
	assert.Contains(t, out, `"base_url"`)
	assert.NotContains(t, out, "correct-horse-battery")
}

func TestEphemeralUsesMemoryStore(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun(t, "", "auth", "status", "--ephemeral")
	assert.Contains(t, out, "memory")
}

func TestVersion(t *testing.T) {
	c := newCLI(t)

	assert.True(t, strings.HasPrefix(c.mustRun(t, "", "version"), "tenderdesk "))
	assert.Contains(t, c.mustRun(t, "", "version", "-v"), " built ")
	assert.Contains(t, c.mustRun(t, "", "version", "--format", "json"), `"go_version"`)
}
