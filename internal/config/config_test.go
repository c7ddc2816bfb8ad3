package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, dir string) *viper.Viper {
	t.Helper()

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newTestViper(t, t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, "sandbox", cfg.Environment)
	assert.Equal(t, "https://v3.recurly.com", cfg.APIBaseURL)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2, cfg.BackoffBase)
	assert.Equal(t, 30, cfg.BackoffMaxSeconds)
	assert.Equal(t, 10, cfg.RateLimitThreshold)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
project = "acme"
environment = "production"
page_size = 100
subdomain = "acme-billing"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rescue.toml"), []byte(contents), 0o600))

	cfg, err := Load(newTestViper(t, dir))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Project)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, "acme-billing", cfg.Subdomain)
	assert.Equal(t, 3, cfg.MaxRetries, "unset keys keep their defaults")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rescue.toml"), []byte(`project = "from-file"`), 0o600))
	t.Setenv("RESCUE_PROJECT", "from-env")

	cfg, err := Load(newTestViper(t, dir))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Project)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"page size too large", `page_size = 500`},
		{"zero page size", `page_size = 0`},
		{"negative retries", `max_retries = -1`},
		{"zero backoff base", `backoff_base = 0`},
		{"zero timeout", `request_timeout_seconds = 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "rescue.toml"), []byte(tt.contents), 0o600))

			_, err := Load(newTestViper(t, dir))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rescue.toml"), []byte(`project = [unclosed`), 0o600))

	_, err := Load(newTestViper(t, dir))
	require.ErrorContains(t, err, "read config file")
}

func TestWriteStarterRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rescue.toml")

	require.NoError(t, WriteStarter(path, "acme"))

	cfg, err := Load(newTestViper(t, dir))
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Project)
	assert.Equal(t, "sandbox", cfg.Environment)
	assert.Equal(t, 50, cfg.PageSize)
}

func TestWriteStarterRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rescue.toml")
	require.NoError(t, os.WriteFile(path, []byte(`project = "keep"`), 0o600))

	err := WriteStarter(path, "acme")
	require.ErrorContains(t, err, "already exists")
}
