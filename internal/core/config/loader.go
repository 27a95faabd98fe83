package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/walletsync/internal/core/domain"
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Wallet.DefaultNetwork == "" {
		cfg.Wallet.DefaultNetwork = domain.Mainnet
	}
	if cfg.Wallet.Currency == "" {
		cfg.Wallet.Currency = "usd"
	}
	if cfg.Wallet.NFTConcurrency == 0 {
		cfg.Wallet.NFTConcurrency = 8
	}
	if cfg.Wallet.EventBuffer == 0 {
		cfg.Wallet.EventBuffer = 64
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Backend.MaxAttempts == 0 {
		cfg.Backend.MaxAttempts = 3
	}
	if cfg.Backend.InitialDelay == 0 {
		cfg.Backend.InitialDelay = 500 * time.Millisecond
	}
}

func (c *AppConfig) validate() error {
	if _, err := domain.ParseNetwork(string(c.Wallet.DefaultNetwork)); err != nil {
		return fmt.Errorf("wallet.default_network: %w", err)
	}
	for i, n := range c.Networks {
		if _, err := domain.ParseNetwork(string(n.Name)); err != nil {
			return fmt.Errorf("networks[%d].name: %w", i, err)
		}
	}
	return nil
}
