package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envConfig is a DTO used exclusively for environment parsing. As with
// the JSON overlay, pointer fields mean only variables that are actually
// set override earlier layers. Variables are prefixed SINGLEBASE_, e.g.
// SINGLEBASE_API_KEY.
type envConfig struct {
	APIKey          *string        `envconfig:"API_KEY"`
	Endpoint        *string        `envconfig:"ENDPOINT"`
	Namespace       *string        `envconfig:"NAMESPACE"`
	CacheDir        *string        `envconfig:"CACHE_DIR"`
	ValidityMargin  *time.Duration `envconfig:"VALIDITY_MARGIN"`
	RefreshInterval *time.Duration `envconfig:"REFRESH_INTERVAL"`
	RequestTimeout  *time.Duration `envconfig:"REQUEST_TIMEOUT"`
}

// parseEnv overlays cfg with values from the environment.
func parseEnv(cfg *Config) error {
	var ec envConfig
	if err := envconfig.Process("singlebase", &ec); err != nil {
		return fmt.Errorf("config: parsing environment: %w", err)
	}

	if ec.APIKey != nil {
		cfg.APIKey = *ec.APIKey
	}
	if ec.Endpoint != nil {
		cfg.Endpoint = *ec.Endpoint
	}
	if ec.Namespace != nil {
		cfg.Namespace = *ec.Namespace
	}
	if ec.CacheDir != nil {
		cfg.CacheDir = *ec.CacheDir
	}
	if ec.ValidityMargin != nil {
		cfg.ValidityMargin = *ec.ValidityMargin
	}
	if ec.RefreshInterval != nil {
		cfg.RefreshInterval = *ec.RefreshInterval
	}
	if ec.RequestTimeout != nil {
		cfg.RequestTimeout = *ec.RequestTimeout
	}
	return nil
}
