// Package config loads the server's runtime configuration from a YAML
// file with environment-variable overrides. This is the process
// configuration (ports, paths, gateway routes); the routing document
// itself lives in internal/audience.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Gateway modes.
const (
	GatewayLog      = "log"
	GatewayShoutrrr = "shoutrrr"
)

// Config holds all runtime settings.
type Config struct {
	Listen        string `koanf:"listen"`
	RoutingConfig string `koanf:"routing_config"`
	Database      string `koanf:"database"`
	LogLevel      string `koanf:"log_level"`

	Dedup     DedupConfig     `koanf:"dedup"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Directory DirectoryConfig `koanf:"directory"`
}

// DedupConfig controls the deduplication cache.
type DedupConfig struct {
	TTL time.Duration `koanf:"ttl"`

	// SweepInterval schedules eviction of expired entries; zero
	// disables the sweep entirely and the map only ever grows.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// GatewayConfig selects and configures the delivery gateway.
type GatewayConfig struct {
	Mode string `koanf:"mode"`

	// Devices maps device identifiers to Shoutrrr service URLs.
	Devices map[string]string `koanf:"devices"`
}

// DirectoryConfig points at an optional home-automation platform used
// for person/device discovery.
type DirectoryConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Listen:        ":8080",
		RoutingConfig: "notification_config.yaml",
		Database:      "courier.db",
		LogLevel:      "info",
		Dedup: DedupConfig{
			TTL:           300 * time.Second,
			SweepInterval: 10 * time.Minute,
		},
		Gateway: GatewayConfig{Mode: GatewayLog},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (COURIER_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// COURIER_LISTEN -> listen, COURIER_LOG_LEVEL -> log_level, etc.
	if err := k.Load(env.Provider("COURIER_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "COURIER_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.RoutingConfig == "" {
		return fmt.Errorf("routing_config path is required")
	}
	switch c.Gateway.Mode {
	case GatewayLog, GatewayShoutrrr:
	default:
		return fmt.Errorf("invalid gateway mode %q: must be log or shoutrrr", c.Gateway.Mode)
	}
	if c.Dedup.TTL < 0 {
		return fmt.Errorf("dedup ttl must be non-negative")
	}
	if c.Dedup.SweepInterval < 0 {
		return fmt.Errorf("dedup sweep_interval must be non-negative")
	}
	return nil
}
