// Package config loads runtime settings from .tally/config.yaml, environment
// variables with the TALLY_ prefix, and built-in defaults, in that order of
// increasing precedence for env vars over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envKeyReplacer maps nested keys to env names, e.g. sync.write_debounce
// becomes TALLY_SYNC_WRITE_DEBOUNCE.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Backend names accepted for store.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	// User identifies this client to collaborators.
	User struct {
		ID   string `mapstructure:"id"`
		Name string `mapstructure:"name"`
	} `mapstructure:"user"`

	// Store selects and locates the document-store backend.
	Store struct {
		Backend string `mapstructure:"backend"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"store"`

	// Sync tunes write scheduling and snapshot reconciliation.
	Sync struct {
		WriteDebounce      time.Duration `mapstructure:"write_debounce"`
		ContentGraceWindow time.Duration `mapstructure:"content_grace_window"`
		TimerGraceWindow   time.Duration `mapstructure:"timer_grace_window"`
	} `mapstructure:"sync"`

	// Presence tunes the heartbeat loop.
	Presence struct {
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		TTL               time.Duration `mapstructure:"ttl"`
	} `mapstructure:"presence"`

	// Timer holds countdown defaults.
	Timer struct {
		DefaultSeconds int `mapstructure:"default_seconds"`
	} `mapstructure:"timer"`
}

// Dir is the per-project configuration directory name.
const Dir = ".tally"

// Load reads configuration rooted at dir. A missing config file is fine;
// defaults and environment variables still apply.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(dir, Dir))

	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromCwd loads configuration relative to the working directory.
func LoadFromCwd() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return Load(cwd)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", filepath.Join(Dir, "tally.db"))
	v.SetDefault("sync.write_debounce", time.Second)
	v.SetDefault("sync.content_grace_window", 18*time.Second)
	v.SetDefault("sync.timer_grace_window", 10*time.Second)
	v.SetDefault("presence.heartbeat_interval", 20*time.Second)
	v.SetDefault("presence.ttl", 45*time.Second)
	v.SetDefault("timer.default_seconds", 1200)
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Sync.WriteDebounce <= 0 {
		return fmt.Errorf("sync.write_debounce must be positive, got %s", c.Sync.WriteDebounce)
	}
	if c.Presence.TTL <= c.Presence.HeartbeatInterval {
		return fmt.Errorf("presence.ttl (%s) must exceed presence.heartbeat_interval (%s)",
			c.Presence.TTL, c.Presence.HeartbeatInterval)
	}
	if c.Timer.DefaultSeconds < 0 {
		return fmt.Errorf("timer.default_seconds must not be negative")
	}
	return nil
}
