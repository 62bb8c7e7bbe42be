// Package config loads delight-watch settings from a YAML file, the
// environment and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Preset is a named bridge host offered for quick switching.
type Preset struct {
	Host  string `mapstructure:"host" yaml:"host"`
	Label string `mapstructure:"label" yaml:"label"`
}

// PushoverConfig holds Pushover credentials. Empty credentials disable it.
type PushoverConfig struct {
	Token           string `mapstructure:"token" yaml:"token,omitempty"`
	UserKey         string `mapstructure:"user_key" yaml:"user_key,omitempty"`
	Priority        int    `mapstructure:"priority" yaml:"priority,omitempty"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds,omitempty"`
}

// Enabled reports whether both credentials are present.
func (p PushoverConfig) Enabled() bool {
	return strings.TrimSpace(p.Token) != "" && strings.TrimSpace(p.UserKey) != ""
}

// Cooldown returns the per-kind cooldown.
func (p PushoverConfig) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// NotifyConfig controls background notifications.
type NotifyConfig struct {
	// Background posts notifications only while no interactive console is
	// attached (the `run --detach` mode).
	Background bool           `mapstructure:"background" yaml:"background"`
	Pushover   PushoverConfig `mapstructure:"pushover" yaml:"pushover"`
}

// Config is the top-level configuration.
type Config struct {
	Host             string       `mapstructure:"host" yaml:"host"`
	Port             int          `mapstructure:"port" yaml:"port"`
	TailnetSuffix    string       `mapstructure:"tailnet_suffix" yaml:"tailnet_suffix"`
	ReconnectDelayMs int          `mapstructure:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
	LogLevel         string       `mapstructure:"log_level" yaml:"log_level"`
	Presets          []Preset     `mapstructure:"presets" yaml:"presets"`
	Notify           NotifyConfig `mapstructure:"notify" yaml:"notify"`
}

const (
	// DefaultHost is the bridge host used when none is configured.
	DefaultHost = "192.168.1.118"
	// DefaultPort is the plaintext bridge port for raw IP hosts.
	DefaultPort = 8080
	// DefaultTailnetSuffix is appended to short host names.
	DefaultTailnetSuffix = ".taildd7ed4.ts.net"
	// DefaultReconnectDelayMs is the fixed reconnect delay.
	DefaultReconnectDelayMs = 3000
)

// DefaultPresets are the hosts offered out of the box.
func DefaultPresets() []Preset {
	return []Preset{
		{Host: DefaultHost, Label: "Home WiFi"},
		{Host: "macbook-pro", Label: "MacBook (Funnel)"},
		{Host: "vnc", Label: "VNC Server (Funnel)"},
	}
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		TailnetSuffix:    DefaultTailnetSuffix,
		ReconnectDelayMs: DefaultReconnectDelayMs,
		LogLevel:         "info",
		Presets:          DefaultPresets(),
	}
}

// DefaultConfigPath returns $DELIGHT_WATCH_CONFIG, or config.yaml under the
// user config directory.
func DefaultConfigPath() (string, error) {
	if path := getenvFirst("DELIGHT_WATCH_CONFIG", "DELIGHT_CONFIG"); path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "delight-watch", "config.yaml"), nil
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ReconnectDelayMs <= 0 {
		return fmt.Errorf("reconnect_delay_ms must be positive, got %d", c.ReconnectDelayMs)
	}
	if c.Notify.Pushover.CooldownSeconds < 0 {
		return fmt.Errorf("notify.pushover.cooldown_seconds must be non-negative")
	}
	seen := make(map[string]bool, len(c.Presets))
	for i, p := range c.Presets {
		if strings.TrimSpace(p.Host) == "" {
			return fmt.Errorf("presets[%d]: host is required", i)
		}
		key := strings.ToLower(p.Label)
		if p.Label != "" && seen[key] {
			return fmt.Errorf("presets[%d]: duplicate label %q", i, p.Label)
		}
		seen[key] = true
	}
	return nil
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// LookupHost maps a preset label (case-insensitive) or a preset host to its
// host. Anything else is returned trimmed as a raw host.
func (c Config) LookupHost(nameOrHost string) (host string, preset *Preset) {
	want := strings.TrimSpace(nameOrHost)
	for i := range c.Presets {
		p := c.Presets[i]
		if strings.EqualFold(p.Label, want) || p.Host == want {
			return p.Host, &p
		}
	}
	return want, nil
}

// PresetFor returns the preset whose host is host, if any.
func (c Config) PresetFor(host string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Host == host {
			return p, true
		}
	}
	return Preset{}, false
}

func getenvFirst(primary, fallback string) string {
	if val := os.Getenv(primary); val != "" {
		return val
	}
	return os.Getenv(fallback)
}
