// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV overrides like LEDGER_GATEWAY_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not present
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from several locations so the binary and the tests
// can both find it.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalog-sync"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metadata.MaxAttempts == 0 {
		cfg.Metadata.MaxAttempts = 3
	}
	if cfg.Metadata.BackoffBaseMs == 0 {
		cfg.Metadata.BackoffBaseMs = 1000
	}
	if cfg.Metadata.PaceIntervalMs == 0 {
		cfg.Metadata.PaceIntervalMs = 500
	}
	if cfg.Metadata.FetchTimeoutMs == 0 {
		cfg.Metadata.FetchTimeoutMs = 10000
	}
	if cfg.Ledger.RequestTimeout == 0 {
		cfg.Ledger.RequestTimeout = 15000
	}
	if cfg.Ledger.ConfirmPollMs == 0 {
		cfg.Ledger.ConfirmPollMs = 2000
	}
	if cfg.Ledger.ConfirmTimeoutMs == 0 {
		cfg.Ledger.ConfirmTimeoutMs = 120000
	}
	if cfg.Pinning.RequestTimeout == 0 {
		cfg.Pinning.RequestTimeout = 30000
	}
	if cfg.API.ListenAddress == "" {
		cfg.API.ListenAddress = ":8085"
	}
	if cfg.Sync.IntervalSeconds == 0 {
		cfg.Sync.IntervalSeconds = 60
	}
}

// overrideEmptyConfig fills secrets from the environment when the yaml left
// them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Ledger.GatewayURL == "" {
		if val := os.Getenv("LEDGER_GATEWAY_URL"); val != "" {
			cfg.Ledger.GatewayURL = val
		}
	}
	if cfg.Ledger.Account == "" {
		if val := os.Getenv("LEDGER_ACCOUNT"); val != "" {
			cfg.Ledger.Account = val
		}
	}
	if cfg.Pinning.APIKey == "" {
		if val := os.Getenv("PINNING_API_KEY"); val != "" {
			cfg.Pinning.APIKey = val
		}
	}
	if cfg.Pinning.APISecret == "" {
		if val := os.Getenv("PINNING_API_SECRET"); val != "" {
			cfg.Pinning.APISecret = val
		}
	}
	if cfg.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Redis.Password = val
		}
	}
}
