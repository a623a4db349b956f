// Package config loads ~/.typec/config.toml and applies TYPEC_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Defaults applied to unset fields.
const (
	DefaultRequestTimeout   = 15 * time.Second
	DefaultRecentRoomsLimit = 5
	DefaultInitialSyncLimit = 50
	DefaultLogLevel         = "info"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TYPEC_"

// Config represents the global ~/.typec/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session" env:"DEFAULT_SESSION"`

	Homeserver  string `toml:"homeserver" env:"HOMESERVER"`
	UserID      string `toml:"user_id" env:"USER_ID"`
	AccessToken string `toml:"access_token" env:"ACCESS_TOKEN"`
	DeviceID    string `toml:"device_id" env:"DEVICE_ID"`
	Encryption  bool   `toml:"encryption" env:"ENCRYPTION"`

	HolidayFeedURL   string        `toml:"holiday_feed_url" env:"HOLIDAY_FEED_URL"`
	RequestTimeout   time.Duration `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
	RecentRoomsLimit int           `toml:"recent_rooms_limit" env:"RECENT_ROOMS_LIMIT"`
	InitialSyncLimit int           `toml:"initial_sync_limit" env:"INITIAL_SYNC_LIMIT"`
	MediaTemplates   []string      `toml:"media_templates" env:"MEDIA_TEMPLATES" envSeparator:","`
	LogLevel         string        `toml:"log_level" env:"LOG_LEVEL"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve loads the file if it exists, overlays the environment and fills in
// defaults. A missing file is not an error.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RecentRoomsLimit <= 0 {
		c.RecentRoomsLimit = DefaultRecentRoomsLimit
	}
	if c.InitialSyncLimit <= 0 {
		c.InitialSyncLimit = DefaultInitialSyncLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the fields the daemon needs to reach the homeserver.
func (c *Config) Validate() error {
	var missing []string
	if c.Homeserver == "" {
		missing = append(missing, "homeserver")
	}
	if c.UserID == "" {
		missing = append(missing, "user_id")
	}
	if c.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if c.Encryption && c.DeviceID == "" {
		missing = append(missing, "device_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %v (set them in config.toml or %s* variables)", missing, EnvPrefix)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
