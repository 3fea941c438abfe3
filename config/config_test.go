package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/singlebase/singlebase-go/internal/common"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	require.Equal(t, "https://api.singlebaseapis.com/api/v1", cfg.Endpoint)
	require.Equal(t, "singlebase", cfg.Namespace)
	require.Equal(t, 60*time.Second, cfg.ValidityMargin)
	require.Equal(t, 60*time.Second, cfg.RefreshInterval)
	require.Empty(t, cfg.APIKey)
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	_, err := Load("")
	require.True(t, errors.Is(err, common.ErrorValidation))
}

func TestLoad_JsonOverlay(t *testing.T) {
	path := writeConfigFile(t, `{
		"api_key": "sk_test",
		"namespace": "myapp",
		"validity_margin": "90s",
		"refresh_interval": 30000000000
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk_test", cfg.APIKey)
	require.Equal(t, "myapp", cfg.Namespace)
	require.Equal(t, 90*time.Second, cfg.ValidityMargin)
	require.Equal(t, 30*time.Second, cfg.RefreshInterval)
	// Keys the file does not mention keep their defaults.
	require.Equal(t, "https://api.singlebaseapis.com/api/v1", cfg.Endpoint)
}

func TestLoad_EnvOverridesJson(t *testing.T) {
	path := writeConfigFile(t, `{"api_key": "from_json", "cache_dir": "/tmp/a"}`)
	t.Setenv("SINGLEBASE_API_KEY", "from_env")
	t.Setenv("SINGLEBASE_REQUEST_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from_env", cfg.APIKey)
	require.Equal(t, "/tmp/a", cfg.CacheDir)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoad_MalformedJsonFails(t *testing.T) {
	path := writeConfigFile(t, `{"api_key": `)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	path := writeConfigFile(t, `{"api_key": "k", "validity_margin": true}`)
	_, err := Load(path)
	require.Error(t, err)
}
