package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables in the
// file body are expanded before parsing so credentials stay out of the
// file itself.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Baseline.MinSamples == 0 {
		cfg.Baseline.MinSamples = 30
	}
	// Component configs default inside their constructors; only the values
	// shared across components are pinned here.
	if cfg.Pool.MaxConns > 0 && cfg.Database.MaxConns < cfg.Pool.MaxConns {
		// the checkout layer must never exceed what database/sql will open
		cfg.Database.MaxConns = cfg.Pool.MaxConns
	}
}
