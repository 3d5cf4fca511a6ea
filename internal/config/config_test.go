package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir keeps a developer's .env out of the test.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfigPath, "NEBULA_API_URL", "NEBULA_DEV", "NEBULA_LOG_PATH", "NEBULA_SEARCH",
		"NEBULA_THINKING", "NEBULA_MAX_UPLOAD_SIZE", "NEBULA_THREAD_ID"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadLayering(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	path := filepath.Join(dir, "nebula.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url = "http://toml:9000"
search = true
thread_id = 4
max_upload_size = 2048
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NEBULA_THREAD_ID=5\nNEBULA_LOG_PATH=/tmp/dotenv\n"), 0o600))
	t.Setenv(EnvConfigPath, path)
	t.Setenv("NEBULA_THINKING", "true")
	t.Setenv("NEBULA_LOG_PATH", "/tmp/env")

	cfg, err := Load([]string{"-thread", "6", "-dev"})
	require.NoError(t, err)

	assert.Equal(t, "http://toml:9000", cfg.APIURL)
	assert.True(t, cfg.Search)
	assert.EqualValues(t, 2048, cfg.MaxUploadSize)
	assert.True(t, cfg.Thinking)
	// the environment wins over .env
	assert.Equal(t, "/tmp/env", cfg.LogPath)
	assert.EqualValues(t, 6, cfg.ThreadID)
	assert.True(t, cfg.Dev)
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadFlagOverridesEnvFalse(t *testing.T) {
	inTempDir(t)
	clearEnv(t)
	t.Setenv("NEBULA_SEARCH", "true")

	cfg, err := Load([]string{"-search=false"})
	require.NoError(t, err)
	assert.False(t, cfg.Search)
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NEBULA_API_URL=http://dotenv:1\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NEBULA_API_URL") })

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://dotenv:1", cfg.APIURL)
}

func TestLoadErrors(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	_, err := Load([]string{"-config", filepath.Join(dir, "missing.toml")})
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("api_url = ["), 0o600))
	_, err = Load([]string{"-config", bad})
	assert.Error(t, err)

	_, err = Load([]string{"-maxUpload", "0"})
	assert.Error(t, err)

	_, err = Load([]string{"-thread", "-1"})
	assert.Error(t, err)

	_, err = Load([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)

	t.Setenv("NEBULA_THREAD_ID", "abc")
	_, err = Load(nil)
	assert.Error(t, err)
}
