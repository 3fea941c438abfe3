package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// duration unmarshals from either a string like "90s" or integer
// nanoseconds, so JSON files can use whichever is more readable.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// jsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from "zero" so the overlay only touches
// keys the file actually sets.
type jsonConfig struct {
	APIKey          *string   `json:"api_key"`
	Endpoint        *string   `json:"endpoint"`
	Namespace       *string   `json:"namespace"`
	CacheDir        *string   `json:"cache_dir"`
	ValidityMargin  *duration `json:"validity_margin"`
	RefreshInterval *duration `json:"refresh_interval"`
	RequestTimeout  *duration `json:"request_timeout"`
}

// parseJson overlays cfg with values loaded from the JSON file at path.
// An empty path means no file is loaded.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if jc.APIKey != nil {
		cfg.APIKey = *jc.APIKey
	}
	if jc.Endpoint != nil {
		cfg.Endpoint = *jc.Endpoint
	}
	if jc.Namespace != nil {
		cfg.Namespace = *jc.Namespace
	}
	if jc.CacheDir != nil {
		cfg.CacheDir = *jc.CacheDir
	}
	if jc.ValidityMargin != nil {
		cfg.ValidityMargin = jc.ValidityMargin.Duration
	}
	if jc.RefreshInterval != nil {
		cfg.RefreshInterval = jc.RefreshInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
