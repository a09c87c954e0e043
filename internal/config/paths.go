package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "icloud-go"

// Config file name.
const configFileName = "config.toml"

// Session snapshot file name.
const sessionFileName = "session.json"

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/icloud-go).
// On macOS, uses ~/Library/Application Support/icloud-go per Apple guidelines.
// Other platforms fall back to ~/.config/icloud-go.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_CONFIG_HOME", ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for application
// data (the session snapshot). On Linux, respects XDG_DATA_HOME (defaults
// to ~/.local/share/icloud-go). On macOS, config and data share one
// directory per platform convention.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_DATA_HOME", filepath.Join(".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDir returns the XDG-compliant app directory for the given base env
// var, falling back to the default base under the home directory.
func linuxDir(home, envVar, defaultBase string) string {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName)
	}

	return filepath.Join(home, defaultBase, appName)
}

// DefaultConfigPath returns the full path to the config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), configFileName)
}

// DefaultSessionPath returns the full path to the session snapshot file.
func DefaultSessionPath() string {
	return filepath.Join(DefaultDataDir(), sessionFileName)
}
