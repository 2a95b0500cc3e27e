// Package config provides a reusable loader for heartwood node
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/nodeforge/heartwood/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a heartwood node. Load
// fills it from YAML files (default.yaml, plus <env>.yaml when an
// environment name is given) looked up under cmd/config and config.
type Config struct {
	Profile struct {
		Home     string `mapstructure:"home" json:"home"`
		Keystore string `mapstructure:"keystore" json:"keystore"`
	} `mapstructure:"profile" json:"profile"`

	Node struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		HTTPAddr       string   `mapstructure:"http_addr" json:"http_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"node" json:"node"`

	Tracking struct {
		// Scope is "all" or "trusted" (policy.Scope).
		Scope   string   `mapstructure:"scope" json:"scope"`
		Tracked []string `mapstructure:"tracked" json:"tracked"`
		Blocked []string `mapstructure:"blocked" json:"blocked"`
	} `mapstructure:"tracking" json:"tracking"`

	Fetch struct {
		LimitBytes  uint64 `mapstructure:"limit_bytes" json:"limit_bytes"`
		TimeoutSecs int    `mapstructure:"timeout_secs" json:"timeout_secs"`
	} `mapstructure:"fetch" json:"fetch"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up matching process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the HEARTWOOD_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("HEARTWOOD_ENV", ""))
}

// DefaultFetchLimit is used when Fetch.LimitBytes is unset (zero) after
// loading.
const DefaultFetchLimit = 512 * 1024 * 1024

// FetchLimit returns the configured fetch byte budget, or DefaultFetchLimit
// if unset.
func (c *Config) FetchLimit() uint64 {
	if c.Fetch.LimitBytes == 0 {
		return DefaultFetchLimit
	}
	return c.Fetch.LimitBytes
}
