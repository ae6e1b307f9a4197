package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
	"github.com/redis/go-redis/v9"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including URL syntax, event patterns and file accessibility. The
// configPath argument specifies the config file location to validate
// (empty string skips config file check).
// This calls Validate() first for basic structural validation.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateTransport(),
		c.validateDebugEvents(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Reconnect.MaxAttempts == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Reconnect",
			Item:     "max_attempts",
			Message:  "0 retries forever; connection_failed is never raised",
		})
	}
	if c.Toasts.Duration <= 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Toasts",
			Item:     "duration",
			Message:  "toasts stay until dismissed",
		})
	}
	if c.Reconnect.Jitter > c.Reconnect.BaseDelay {
		warnings = append(warnings, ValidationWarning{
			Category: "Reconnect",
			Item:     "jitter",
			Message:  "jitter exceeds base_delay; early retries are mostly random",
		})
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// validateTransport checks the selected transport's endpoint.
func (c *Config) validateTransport() error {
	switch c.Transport.Kind {
	case TransportSSE:
		return criterio.Run("transport.sse.url", c.Transport.SSE.URL, isHTTPURL)
	case TransportRedis:
		return criterio.Run("transport.redis.url", c.Transport.Redis.URL, isRedisURL)
	}
	return nil
}

func isHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func isRedisURL(raw string) error {
	if _, err := redis.ParseURL(raw); err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	return nil
}

// validateDebugEvents checks every debug event pattern compiles.
func (c *Config) validateDebugEvents() error {
	var errs criterio.FieldErrorsBuilder
	for i, pattern := range c.Log.DebugEvents {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("log.debug_events[%d]", i), fmt.Errorf("invalid pattern %q", pattern))
		}
	}
	return errs.ToError()
}
