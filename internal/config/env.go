package config

import "os"

// Environment variable names for overrides. SIDEFX_CLIENT and SIDEFX_SECRET
// match the names the vendor's own tooling documents for API credentials.
const (
	EnvConfig       = "SESIWEB_CONFIG"
	EnvClientID     = "SIDEFX_CLIENT"
	EnvClientSecret = "SIDEFX_SECRET"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // SESIWEB_CONFIG: override config file path
	ClientID     string // SIDEFX_CLIENT: application client id
	ClientSecret string // SIDEFX_SECRET: application client secret
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify a Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}
}
