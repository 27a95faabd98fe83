package config

import (
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/api"
	redisclient "github.com/vietddude/walletsync/internal/infra/redis"
	"github.com/vietddude/walletsync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Wallet   WalletConfig       `yaml:"wallet"`
	Backend  api.Config         `yaml:"backend"`
	Networks []NetworkConfig    `yaml:"networks"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// WalletConfig holds session defaults.
type WalletConfig struct {
	DefaultNetwork domain.Network `yaml:"default_network"`
	Currency       string         `yaml:"currency"`        // reference currency for prices, e.g. usd
	FreeGas        bool           `yaml:"free_gas"`        // gas sponsored by the payer service
	NFTConcurrency int            `yaml:"nft_concurrency"` // parallel NFT page requests
	EventBuffer    int            `yaml:"event_buffer"`

	// HistoryRetention bounds how long completed transactions are kept; 0 keeps them forever
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// NetworkConfig holds chain endpoints for one network.
type NetworkConfig struct {
	Name          domain.Network `yaml:"name"`
	AccessURL     string         `yaml:"access_url"`      // Flow access node REST API
	StreamURL     string         `yaml:"stream_url"`      // Flow access node websocket API
	KeyIndexerURL string         `yaml:"key_indexer_url"` // public key -> account lookup
	EVMRPCURL     string         `yaml:"evm_rpc_url"`
}

// Network returns the endpoints for name.
func (c *AppConfig) Network(name domain.Network) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}
