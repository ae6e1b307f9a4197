// Package config handles configuration loading and validation for vitals.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/vitals/internal/core/styles"
)

// TransportKind selects the push channel implementation.
type TransportKind string

const (
	TransportSSE   TransportKind = "sse"
	TransportRedis TransportKind = "redis"
)

// IsValid reports whether k names a supported transport.
func (k TransportKind) IsValid() bool {
	switch k {
	case TransportSSE, TransportRedis:
		return true
	default:
		return false
	}
}

// Config holds the application configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Toasts    ToastConfig     `yaml:"toasts"`
	Log       LogConfig       `yaml:"log"`
	TUI       TUIConfig       `yaml:"tui"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// TransportConfig selects and configures the push channel.
type TransportConfig struct {
	Kind  TransportKind `yaml:"kind"`
	SSE   SSEConfig     `yaml:"sse"`
	Redis RedisConfig   `yaml:"redis"`
}

// SSEConfig configures the Server-Sent Events transport.
type SSEConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// RedisConfig configures the Redis pub/sub transport.
type RedisConfig struct {
	URL           string `yaml:"url"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// ReconnectConfig configures the reconnect backoff.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 retries until disconnect
	Jitter      time.Duration `yaml:"jitter"`
}

// ToastConfig configures the toast stack.
type ToastConfig struct {
	MaxVisible int           `yaml:"max_visible"`
	Duration   time.Duration `yaml:"duration"` // <= 0 keeps toasts until dismissed
	ExitDelay  time.Duration `yaml:"exit_delay"`
}

// LogConfig holds logging options that are not flags.
type LogConfig struct {
	// DebugEvents are doublestar patterns of event names logged at debug
	// level as they are dispatched.
	DebugEvents []string `yaml:"debug_events"`
}

// TUIConfig holds dashboard options.
type TUIConfig struct {
	Theme string `yaml:"theme"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			Kind: TransportSSE,
			SSE: SSEConfig{
				URL: "http://localhost:8080/notifications/stream",
			},
			Redis: RedisConfig{
				URL:           "redis://localhost:6379/0",
				ChannelPrefix: "vitals:notifications",
			},
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    30 * time.Second,
			MaxAttempts: 10,
			Jitter:      250 * time.Millisecond,
		},
		Toasts: ToastConfig{
			MaxVisible: 3,
			Duration:   5 * time.Second,
			ExitDelay:  300 * time.Millisecond,
		},
		TUI: TUIConfig{
			Theme: "tokyo-night",
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills options that have no meaningful zero value. Options
// where zero is meaningful (max_attempts, toast duration, exit delay) are
// left as the file set them.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Transport.Kind == "" {
		c.Transport.Kind = defaults.Transport.Kind
	}
	if c.Transport.Redis.ChannelPrefix == "" {
		c.Transport.Redis.ChannelPrefix = defaults.Transport.Redis.ChannelPrefix
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = defaults.Reconnect.BaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = defaults.Reconnect.MaxDelay
	}
	if c.Toasts.MaxVisible == 0 {
		c.Toasts.MaxVisible = defaults.Toasts.MaxVisible
	}
	if c.TUI.Theme == "" {
		c.TUI.Theme = defaults.TUI.Theme
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if !c.Transport.Kind.IsValid() {
		return fmt.Errorf("transport.kind %q is not one of sse, redis", c.Transport.Kind)
	}

	switch c.Transport.Kind {
	case TransportSSE:
		if c.Transport.SSE.URL == "" {
			return fmt.Errorf("transport.sse.url cannot be empty")
		}
	case TransportRedis:
		if c.Transport.Redis.URL == "" {
			return fmt.Errorf("transport.redis.url cannot be empty")
		}
	}

	if c.Reconnect.BaseDelay < 0 || c.Reconnect.MaxDelay < 0 || c.Reconnect.Jitter < 0 {
		return fmt.Errorf("reconnect delays cannot be negative")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay must be at least reconnect.base_delay")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts cannot be negative")
	}

	if c.Toasts.MaxVisible < 1 {
		return fmt.Errorf("toasts.max_visible must be at least 1")
	}
	if c.Toasts.ExitDelay < 0 {
		return fmt.Errorf("toasts.exit_delay cannot be negative")
	}

	if _, ok := styles.GetPalette(c.TUI.Theme); !ok {
		return fmt.Errorf("tui.theme %q is not one of %s", c.TUI.Theme, strings.Join(styles.ThemeNames(), ", "))
	}

	return nil
}
