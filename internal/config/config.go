// Package config loads tether's runtime configuration.
//
// Sources are layered with koanf, later ones winning: built-in defaults, an
// optional YAML file, TETHER_* environment variables and finally explicit
// overrides (command-line flags).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// A single underscore separates nesting levels and a double underscore is a
// literal underscore, e.g. TETHER_RECONNECT_BASE__DELAY=500ms sets
// reconnect.base_delay.
const EnvPrefix = "TETHER_"

// Transport drivers.
const (
	DriverCoder   = "coder"
	DriverGorilla = "gorilla"
)

// DefaultEndpoint is the public echo service used when none is configured.
const DefaultEndpoint = "wss://echo.websocket.org"

// Config holds the client's and echo server's runtime configuration.
type Config struct {
	Endpoint  string    `koanf:"endpoint"`
	Reconnect Reconnect `koanf:"reconnect"`
	Transport Transport `koanf:"transport"`
	Outbox    Outbox    `koanf:"outbox"`
	Log       Log       `koanf:"log"`
	Metrics   Metrics   `koanf:"metrics"`
	Echo      Echo      `koanf:"echo"`
}

// Reconnect configures the backoff between reconnect attempts.
type Reconnect struct {
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`
}

// Transport configures the websocket dialer.
type Transport struct {
	Driver           string        `koanf:"driver"` // "coder" or "gorilla"
	Proxy            string        `koanf:"proxy"`  // socks5:// or http:// proxy URL; empty dials directly
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	Compression      bool          `koanf:"compression"`
	ReadLimit        int64         `koanf:"read_limit"` // bytes; 0 keeps the driver default
}

// Outbox configures the on-disk spill of unsent payloads.
type Outbox struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Log configures logging.
type Log struct {
	Level string `koanf:"level"`
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Echo configures the local echo server.
type Echo struct {
	Addr string `koanf:"addr"`
}

func defaults() map[string]any {
	return map[string]any{
		"endpoint": DefaultEndpoint,
		"reconnect": map[string]any{
			"base_delay": "1s",
			"max_delay":  "30s",
		},
		"transport": map[string]any{
			"driver":            DriverCoder,
			"proxy":             "",
			"handshake_timeout": "10s",
			"write_timeout":     "10s",
			"compression":       false,
			"read_limit":        0,
		},
		"outbox": map[string]any{
			"enabled": true,
			"path":    defaultOutboxPath(),
		},
		"log": map[string]any{
			"level": "info",
		},
		"metrics": map[string]any{
			"addr": "",
		},
		"echo": map[string]any{
			"addr": ":8080",
		},
	}
}

func defaultOutboxPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "tether", "outbox.db")
	}
	return filepath.Join(home, ".config", "tether", "outbox.db")
}

// Default returns the configuration with only built-in defaults applied.
func Default() *Config {
	cfg, err := load("", nil, false)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load builds a Config from defaults, the YAML file at configPath (skipped
// when empty or missing), the environment and overrides, which are keyed by
// dotted paths such as "reconnect.base_delay".
func Load(configPath string, overrides map[string]any) (*Config, error) {
	return load(configPath, overrides, true)
}

func load(configPath string, overrides map[string]any, useEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to access config file %s: %w", configPath, err)
		}
	}

	if useEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps TETHER_TRANSPORT_WRITE__TIMEOUT to transport.write_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("invalid endpoint scheme %q (must be ws, wss, http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", c.Endpoint)
	}

	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be positive")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) must not be less than reconnect.base_delay (%s)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	switch c.Transport.Driver {
	case DriverCoder, DriverGorilla:
	default:
		return fmt.Errorf("invalid transport.driver: %s (must be coder or gorilla)", c.Transport.Driver)
	}
	if c.Transport.Proxy != "" {
		if _, err := url.Parse(c.Transport.Proxy); err != nil {
			return fmt.Errorf("invalid transport.proxy: %w", err)
		}
	}
	if c.Transport.HandshakeTimeout < 0 || c.Transport.WriteTimeout < 0 {
		return fmt.Errorf("transport timeouts must not be negative")
	}
	if c.Transport.ReadLimit < 0 {
		return fmt.Errorf("transport.read_limit must not be negative")
	}

	if c.Outbox.Enabled && c.Outbox.Path == "" {
		return fmt.Errorf("outbox.path is required when the outbox is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	return nil
}
