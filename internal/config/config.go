// Package config loads the credmine TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Queue selects the Feedback Queue backend.
type Queue struct {
	DSN  string `toml:"dsn"`
	Name string `toml:"name"`
}

// Storage locates the local credential store.
type Storage struct {
	Path string `toml:"path"`
}

// Settings locates the persisted setting overrides.
type Settings struct {
	Path string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Mining tunes the processing cycle of captured logins.
type Mining struct {
	RetryDelayMs int `toml:"retry_delay_ms"`
	MaxAttempts  int `toml:"max_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for credmine.
type Config struct {
	Queue         Queue         `toml:"queue"`
	Storage       Storage       `toml:"storage"`
	Settings      Settings      `toml:"settings"`
	Notifications Notifications `toml:"notifications"`
	Mining        Mining        `toml:"mining"`
	Logging       Logging       `toml:"logging"`
}

const (
	defaultConfigPath     = "~/.config/credmine/config.toml"
	defaultStoragePath    = "~/.local/share/credmine/credentials.db"
	defaultSettingsPath   = "~/.config/credmine/settings.toml"
	defaultQueueDSN       = "sqlite://~/.local/share/credmine/queue.db"
	defaultQueueName      = "mining"
	defaultRequestTimeout = 10
	defaultRetryDelayMs   = 1000
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Queue:         Queue{DSN: defaultQueueDSN, Name: defaultQueueName},
		Storage:       Storage{Path: defaultStoragePath},
		Settings:      Settings{Path: defaultSettingsPath},
		Notifications: Notifications{RequestTimeout: defaultRequestTimeout},
		Mining:        Mining{RetryDelayMs: defaultRetryDelayMs},
		Logging:       Logging{Format: "console", Level: "info"},
	}
}

// DefaultConfigPath returns the absolute path of the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path, or the default location when path is
// empty. A missing file yields the defaults. The returned bool reports whether
// a file was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if path == "" {
		path = defaultConfigPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, "", false, err
	}

	exists := true
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func (c *Config) normalize() error {
	var err error
	c.Queue.DSN = strings.TrimSpace(c.Queue.DSN)
	if c.Queue.DSN == "" {
		c.Queue.DSN = defaultQueueDSN
	}
	if rest, ok := strings.CutPrefix(c.Queue.DSN, "sqlite://"); ok {
		if rest, err = expandPath(rest); err != nil {
			return fmt.Errorf("queue.dsn: %w", err)
		}
		c.Queue.DSN = "sqlite://" + rest
	}
	c.Queue.Name = strings.TrimSpace(c.Queue.Name)
	if c.Queue.Name == "" {
		c.Queue.Name = defaultQueueName
	}
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	if c.Settings.Path, err = expandPath(c.Settings.Path); err != nil {
		return fmt.Errorf("settings.path: %w", err)
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path must be set")
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Mining.RetryDelayMs < 0 {
		return errors.New("mining.retry_delay_ms must not be negative")
	}
	if c.Mining.MaxAttempts < 0 {
		return errors.New("mining.max_attempts must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
