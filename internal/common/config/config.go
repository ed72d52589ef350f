// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Pinning  PinningConfig  `mapstructure:"pinning"`
	Redis    RedisConfig    `mapstructure:"redis"`
	API      APIConfig      `mapstructure:"api"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LedgerConfig holds connection settings for the ledger gateway and the
// on-chain addresses the dispatcher needs.
type LedgerConfig struct {
	GatewayURL         string `mapstructure:"gateway_url"`
	Account            string `mapstructure:"account"`
	MarketplaceAddress string `mapstructure:"marketplace_address"`
	NFTAddress         string `mapstructure:"nft_address"`
	RequestTimeout     int    `mapstructure:"request_timeout"` // milliseconds
	ConfirmPollMs      int    `mapstructure:"confirm_poll"`    // milliseconds
	ConfirmTimeoutMs   int    `mapstructure:"confirm_timeout"` // milliseconds
}

// MetadataConfig holds settings for the metadata resolver and pacer.
type MetadataConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffBaseMs  int `mapstructure:"backoff_base"`  // milliseconds
	PaceIntervalMs int `mapstructure:"pace_interval"` // milliseconds
	FetchTimeoutMs int `mapstructure:"fetch_timeout"` // milliseconds
}

// PinningConfig holds settings for the content-pinning service.
type PinningConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	GatewayBaseURL string `mapstructure:"gateway_base_url"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// SyncConfig controls the aggregation loop.
type SyncConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Ledger.GatewayURL == "" {
		return fmt.Errorf("ledger.gateway_url is required")
	}
	if c.Ledger.MarketplaceAddress == "" {
		return fmt.Errorf("ledger.marketplace_address is required")
	}
	if c.Metadata.MaxAttempts < 1 {
		return fmt.Errorf("metadata.max_attempts must be at least 1")
	}
	return nil
}
