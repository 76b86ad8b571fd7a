// Package config loads application configuration from file and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	DefaultCurrency string `mapstructure:"default_currency"`

	Server    ServerConfig    `mapstructure:"server"`
	Sync      SyncConfig      `mapstructure:"sync"`
	TrueLayer TrueLayerConfig `mapstructure:"truelayer"`

	// Categories overrides the built-in classifier rule table when
	// non-empty. Order is priority order.
	Categories []CategoryRule `mapstructure:"categories"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SyncConfig controls the transaction fetch windows.
type SyncConfig struct {
	// WindowDays is the default fetch window for an account that has
	// synced before.
	WindowDays int `mapstructure:"window_days"`
	// OverlapDays is subtracted from the last sync time so boundary
	// transactions are not missed.
	OverlapDays int `mapstructure:"overlap_days"`
	// FullSyncDays is the window used for a forced full sync.
	FullSyncDays int `mapstructure:"full_sync_days"`
}

// TrueLayerConfig holds the aggregator API settings. The client secret
// is only ever read from the environment.
type TrueLayerConfig struct {
	AuthBaseURL  string `mapstructure:"auth_base_url"`
	APIBaseURL   string `mapstructure:"api_base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// CategoryRule defines one classifier rule.
type CategoryRule struct {
	Category string   `mapstructure:"category"`
	Keywords []string `mapstructure:"keywords"`
}

// Load reads configuration from the given file (optional) and from
// LEDGER_* environment variables. Missing values fall back to defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("default_currency", "GBP")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("sync.window_days", 90)
	v.SetDefault("sync.overlap_days", 7)
	v.SetDefault("sync.full_sync_days", 365)
	v.SetDefault("truelayer.auth_base_url", "https://auth.truelayer.com")
	v.SetDefault("truelayer.api_base_url", "https://api.truelayer.com")

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
