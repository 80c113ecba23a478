package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8000", cfg.ExecuteURL)
	assert.Equal(t, 15*time.Second, cfg.ExecuteTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.LogContentUpdates, "content updates are silent by default")
	assert.True(t, cfg.AutoOpenCreated)
	assert.NoError(t, cfg.Validate())
}

func TestParse_HCL(t *testing.T) {
	src := []byte(`
execute_url     = "http://runner:9000"
execute_timeout = "3s"
download_dir    = "/tmp/out"

log {
  level  = "debug"
  format = "json"
}

workspace {
  log_content_updates = true
  auto_open_created   = false
}
`)
	cfg, err := Parse("codepad.hcl", src)
	require.NoError(t, err)

	assert.Equal(t, "http://runner:9000", cfg.ExecuteURL)
	assert.Equal(t, 3*time.Second, cfg.ExecuteTimeout)
	assert.Equal(t, "/tmp/out", cfg.DownloadDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.LogContentUpdates)
	assert.False(t, cfg.AutoOpenCreated)
	assert.False(t, cfg.FormatOnExport, "unset attributes keep their defaults")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("bad.hcl", []byte(`execute_url = `))
	assert.Error(t, err)

	_, err = Parse("bad.hcl", []byte(`execute_timeout = "soon"`))
	assert.ErrorContains(t, err, "execute_timeout")

	_, err = Parse("bad.hcl", []byte(`execute_url = "not a url"`))
	assert.ErrorContains(t, err, "execute_url")

	_, err = Parse("bad.hcl", []byte(`unknown_key = 1`))
	assert.Error(t, err, "unknown attributes are rejected")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CODEPAD_EXECUTE_URL":         "https://exec.example",
		"CODEPAD_EXECUTE_TIMEOUT":     "250ms",
		"CODEPAD_LOG_LEVEL":           "warn",
		"CODEPAD_LOG_CONTENT_UPDATES": "true",
		"CODEPAD_FORMAT_ON_EXPORT":    "maybe", // ignored
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "https://exec.example", cfg.ExecuteURL)
	assert.Equal(t, 250*time.Millisecond, cfg.ExecuteTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.LogContentUpdates)
	assert.False(t, cfg.FormatOnExport)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codepad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`execute_url = "http://file:1"
log {
  level = "debug"
}
`), 0o644))
	t.Setenv("CODEPAD_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://file:1", cfg.ExecuteURL)
	assert.Equal(t, "error", cfg.Log.Level, "environment wins over the file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err, "an explicit path must exist")

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err, "the default file is optional")
	assert.Equal(t, Default().ExecuteURL, cfg.ExecuteURL)
}
