package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/axwatch/internal/platform"
)

const (
	DefaultRescanInterval       = 10 * time.Second
	DefaultHistorySize          = 256
	DefaultMoveResizePerSecond  = 20
	DefaultThrottleBurst        = 5
	DefaultMetricsListenAddress = "127.0.0.1:9464"
)

// ThrottleConfig limits moved/resized callbacks per window.
type ThrottleConfig struct {
	// MoveResizePerSecond is the sustained rate per window; 0 disables throttling.
	MoveResizePerSecond float64 `yaml:"move_resize_per_second"`
	Burst               int     `yaml:"burst"`
}

// IPCConfig controls the daemon's control socket.
type IPCConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config is the effective axwatch configuration.
type Config struct {
	// Notifications names the accessibility notifications observed on every
	// application. Empty means the watcher's default set.
	Notifications  []string       `yaml:"notifications"`
	IgnoreApps     []string       `yaml:"ignore_apps"`
	RescanInterval time.Duration  `yaml:"rescan_interval"`
	Throttle       ThrottleConfig `yaml:"throttle"`
	LogLevel       string         `yaml:"log_level"`
	IPC            IPCConfig      `yaml:"ipc"`
	Metrics        MetricsConfig  `yaml:"metrics"`
	HistorySize    int            `yaml:"history_size"`
	PromptForTrust bool           `yaml:"prompt_for_trust"`
}

func DefaultConfig() *Config {
	return &Config{
		Notifications: []string{
			string(platform.NotificationFocusedWindowChanged),
			string(platform.NotificationWindowCreated),
			string(platform.NotificationApplicationActivated),
			string(platform.NotificationWindowMiniaturized),
			string(platform.NotificationWindowDeminiaturized),
			string(platform.NotificationWindowMoved),
			string(platform.NotificationWindowResized),
			string(platform.NotificationUIElementDestroyed),
		},
		IgnoreApps:     []string{},
		RescanInterval: DefaultRescanInterval,
		Throttle: ThrottleConfig{
			MoveResizePerSecond: DefaultMoveResizePerSecond,
			Burst:               DefaultThrottleBurst,
		},
		LogLevel: "info",
		IPC:      IPCConfig{Enabled: true},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  DefaultMetricsListenAddress,
		},
		HistorySize:    DefaultHistorySize,
		PromptForTrust: true,
	}
}

// WatchedNotifications parses Notifications.
func (c *Config) WatchedNotifications() ([]platform.Notification, error) {
	out := make([]platform.Notification, 0, len(c.Notifications))
	seen := make(map[platform.Notification]bool, len(c.Notifications))
	for _, name := range c.Notifications {
		n, err := platform.ParseNotification(name)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes the configuration to path, or to the standard location when
// path is empty.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Notifications == nil {
		return &ValidationError{Path: "notifications", Err: fmt.Errorf("notifications must not be null")}
	}
	for i, name := range c.Notifications {
		if _, err := platform.ParseNotification(name); err != nil {
			return &ValidationError{Path: "notifications", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
	}
	for _, name := range c.IgnoreApps {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Path: "ignore_apps", Err: fmt.Errorf("ignore_apps contains an empty name")}
		}
	}
	if c.RescanInterval < time.Second {
		return &ValidationError{Path: "rescan_interval", Err: fmt.Errorf("rescan_interval must be >= 1s")}
	}
	if c.Throttle.MoveResizePerSecond < 0 {
		return &ValidationError{Path: "throttle.move_resize_per_second", Err: fmt.Errorf("move_resize_per_second must be >= 0")}
	}
	if c.Throttle.Burst < 0 {
		return &ValidationError{Path: "throttle.burst", Err: fmt.Errorf("burst must be >= 0")}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		return &ValidationError{Path: "metrics.listen", Err: fmt.Errorf("metrics.listen is required when metrics are enabled")}
	}
	if c.HistorySize < 0 {
		return &ValidationError{Path: "history_size", Err: fmt.Errorf("history_size must be >= 0")}
	}
	return nil
}
