package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. DELIGHT_WATCH_HOST or
// DELIGHT_WATCH_NOTIFY_PUSHOVER_TOKEN.
const EnvPrefix = "DELIGHT_WATCH"

// Load reads configuration from path. If path is empty, DefaultConfigPath is
// used. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	def := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("tailnet_suffix", def.TailnetSuffix)
	v.SetDefault("reconnect_delay_ms", def.ReconnectDelayMs)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("presets", def.Presets)
	v.SetDefault("notify.background", def.Notify.Background)
	v.SetDefault("notify.pushover.token", "")
	v.SetDefault("notify.pushover.user_key", "")
	v.SetDefault("notify.pushover.priority", 0)
	v.SetDefault("notify.pushover.cooldown_seconds", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Decode into a zero value: defaults come only from SetDefault, so a
	// file list replaces the default list instead of merging into it.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	// Shared credentials used by other delight tools.
	if cfg.Notify.Pushover.Token == "" {
		cfg.Notify.Pushover.Token = os.Getenv("PUSHOVER_TOKEN")
	}
	if cfg.Notify.Pushover.UserKey == "" {
		cfg.Notify.Pushover.UserKey = os.Getenv("PUSHOVER_USER_KEY")
	}

	cfg.Host = strings.TrimSpace(cfg.Host)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
