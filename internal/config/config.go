// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for the sesiweb CLI. Settings resolve
// through a three-layer override chain: defaults, then the config file, then
// environment variables.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth     AuthConfig     `toml:"auth"`
	API      APIConfig      `toml:"api"`
	Download DownloadConfig `toml:"download"`
	Logging  LoggingConfig  `toml:"logging"`
}

// AuthConfig holds the API application credentials and the token cache
// location. Credentials come from the Services page of the vendor account;
// prefer the SIDEFX_CLIENT and SIDEFX_SECRET environment variables over
// writing the secret into a file.
type AuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenCache   string `toml:"token_cache"`
}

// APIConfig controls the HTTP client: endpoints, timeout, and the outbound
// rate limit. Timeout is a Go duration string, "0" disables it. A rate_limit
// of 0 disables client-side throttling.
type APIConfig struct {
	EndpointURL string `toml:"endpoint_url"`
	TokenURL    string `toml:"token_url"`
	Timeout     string `toml:"timeout"`
	RateLimit   int    `toml:"rate_limit"`
	RateBurst   int    `toml:"rate_burst"`
	UserAgent   string `toml:"user_agent"`
}

// DownloadConfig controls where fetched builds land and where the download
// manifest database lives. An empty manifest path falls back to the platform
// data directory.
type DownloadConfig struct {
	Dir      string `toml:"dir"`
	Manifest string `toml:"manifest"`
}

// LoggingConfig controls log verbosity and output format. Format "auto"
// picks text on a terminal and JSON otherwise.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
}
