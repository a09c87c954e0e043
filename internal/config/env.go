package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "ICLOUD_GO_CONFIG"
	EnvSession = "ICLOUD_GO_SESSION"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath  string // ICLOUD_GO_CONFIG: override config file path
	SessionPath string // ICLOUD_GO_SESSION: override session snapshot path
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:  os.Getenv(EnvConfig),
		SessionPath: os.Getenv(EnvSession),
	}
}
