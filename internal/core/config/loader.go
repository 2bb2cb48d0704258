package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is present.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Authority.CacheTTL == 0 {
		cfg.Authority.CacheTTL = 5 * time.Minute
	}
	if cfg.Authority.ChallengeTimeout == 0 {
		cfg.Authority.ChallengeTimeout = 2 * time.Minute
	}
	if cfg.Usage.ThresholdPercent == 0 {
		cfg.Usage.ThresholdPercent = 80.0
	}
	if cfg.Usage.PersistInterval == 0 {
		cfg.Usage.PersistInterval = 30 * time.Second
	}
	for i := range cfg.Usage.Connections {
		if cfg.Usage.Connections[i].ResetDay == 0 {
			cfg.Usage.Connections[i].ResetDay = 1
		}
	}
	if cfg.Recovery.InitialDelay == 0 {
		cfg.Recovery.InitialDelay = 1 * time.Second
	}
	if cfg.Recovery.MaxDelay == 0 {
		cfg.Recovery.MaxDelay = 30 * time.Second
	}
	if cfg.Recovery.MaxAttempts == 0 {
		cfg.Recovery.MaxAttempts = 3
	}
}
