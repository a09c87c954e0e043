// Package config loads and validates the icloud-go configuration file.
// Configuration follows a three-layer override chain: built-in defaults,
// the TOML config file, then environment variables; CLI flags override all
// three at the call site.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Default values for configuration options — "layer 0" of the override
// chain, chosen so the client works with no config file at all.
const (
	defaultLogLevel    = "info"
	defaultHTTPTimeout = "30s"
)

// Valid log_level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Config is the on-disk configuration.
type Config struct {
	// SessionPath overrides where the session snapshot is stored.
	// Empty means the platform default data directory.
	SessionPath string `toml:"session_path"`

	// LogLevel is the baseline log level: debug, info, warn, or error.
	// The --verbose and --quiet flags override it.
	LogLevel string `toml:"log_level"`

	// HTTPTimeout bounds each HTTP request, as a Go duration string.
	// The core engine imposes no timeouts itself; this is the caller-side
	// bound applied to the transport.
	HTTPTimeout string `toml:"http_timeout"`
}

// DefaultConfig returns a Config populated with all default values. Used
// as the starting point for TOML decoding so unset fields keep defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    defaultLogLevel,
		HTTPTimeout: defaultHTTPTimeout,
	}
}

// Validate checks all configuration values and returns all errors found,
// accumulated rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", cfg.LogLevel))
	}

	if d, err := time.ParseDuration(cfg.HTTPTimeout); err != nil {
		errs = append(errs, fmt.Errorf("http_timeout %q is not a valid duration: %w", cfg.HTTPTimeout, err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("http_timeout %q must be positive", cfg.HTTPTimeout))
	}

	return errors.Join(errs...)
}

// Timeout returns the parsed HTTP timeout. Call only after Validate.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		d, _ = time.ParseDuration(defaultHTTPTimeout)
	}

	return d
}
