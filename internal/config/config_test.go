package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "30s", cfg.HTTPTimeout)
	assert.Empty(t, cfg.SessionPath)
	assert.NoError(t, Validate(cfg))
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_BadTimeout(t *testing.T) {
	tests := []string{"fast", "-5s", "0"}

	for _, timeout := range tests {
		cfg := DefaultConfig()
		cfg.HTTPTimeout = timeout
		assert.Error(t, Validate(cfg), "timeout %q", timeout)
	}
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := &Config{LogLevel: "loud", HTTPTimeout: "fast"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "http_timeout")
}

func TestTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPTimeout = "45s"
	assert.Equal(t, 45*time.Second, cfg.Timeout())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
http_timeout = "10s"
session_path = "/tmp/session.json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "10s", cfg.HTTPTimeout)
	assert.Equal(t, "/tmp/session.json", cfg.SessionPath)
}

func TestLoad_UnsetFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `log_level = "warn"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "30s", cfg.HTTPTimeout)
}

func TestLoad_UnknownKeyIsFatal(t *testing.T) {
	path := writeConfig(t, `log_levle = "debug"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "log_levle")
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_PrecedenceChain(t *testing.T) {
	cfgPath := writeConfig(t, `session_path = "/from/config"`)

	// Config file only.
	_, sessionPath, err := Resolve(EnvOverrides{}, cfgPath, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/config", sessionPath)

	// Environment beats config file.
	_, sessionPath, err = Resolve(EnvOverrides{SessionPath: "/from/env"}, cfgPath, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", sessionPath)

	// CLI beats environment.
	_, sessionPath, err = Resolve(EnvOverrides{SessionPath: "/from/env"}, cfgPath, "/from/cli")
	require.NoError(t, err)
	assert.Equal(t, "/from/cli", sessionPath)
}

func TestResolve_DefaultsWithNoFile(t *testing.T) {
	cfg, sessionPath, err := Resolve(EnvOverrides{}, filepath.Join(t.TempDir(), "none.toml"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, DefaultSessionPath(), sessionPath)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/env/config.toml")
	t.Setenv(EnvSession, "/env/session.json")

	env := ReadEnvOverrides()
	assert.Equal(t, "/env/config.toml", env.ConfigPath)
	assert.Equal(t, "/env/session.json", env.SessionPath)
}

func TestDefaultPaths(t *testing.T) {
	assert.Equal(t, filepath.Join(DefaultConfigDir(), "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join(DefaultDataDir(), "session.json"), DefaultSessionPath())
}
