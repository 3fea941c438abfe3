// Package config holds runtime settings for the SDK client.
//
// Configuration is layered: defaults first, then an optional JSON file,
// then environment variables. Later sources take precedence over earlier
// ones.
package config

import (
	"fmt"
	"time"

	"github.com/singlebase/singlebase-go/internal/common"
)

// Config holds runtime settings for a Client.
//
// Fields:
//   - APIKey: project API key sent with every request. Required.
//   - Endpoint: base URL of the backend API.
//   - Namespace: prefix for persisted keys, so several projects can share
//     one cache directory.
//   - CacheDir: directory for the persistent session cache. Empty means
//     sessions live in process memory only.
//   - ValidityMargin: how long before expiry a token is treated as stale.
//   - RefreshInterval: how often the background refresher re-checks the
//     session. Zero disables it.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	APIKey          string
	Endpoint        string
	Namespace       string
	CacheDir        string
	ValidityMargin  time.Duration
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Endpoint = "https://api.singlebaseapis.com/api/v1"
	c.Namespace = "singlebase"
	c.ValidityMargin = 60 * time.Second
	c.RefreshInterval = 60 * time.Second
	c.RequestTimeout = 30 * time.Second
}

// Load constructs a Config, applies defaults, then overlays values from
// a JSON file (if jsonPath is non-empty) and environment variables.
func Load(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports whether the config is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: %w: api key is required", common.ErrorValidation)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("config: %w: endpoint is required", common.ErrorValidation)
	}
	return nil
}
