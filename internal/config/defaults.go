package config

// Default values for configuration options, the bottom layer of the
// override chain. They work without any config file as long as credentials
// arrive through the environment.
const (
	defaultEndpointURL = "https://www.sidefx.com/api/"
	defaultTokenURL    = "https://www.sidefx.com/oauth2/application_token"
	defaultTimeout     = "0"
	defaultDownloadDir = "."
	defaultLogLevel    = "info"
	defaultLogFormat   = "auto"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding, so unset fields keep defaults,
// and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			EndpointURL: defaultEndpointURL,
			TokenURL:    defaultTokenURL,
			Timeout:     defaultTimeout,
		},
		Download: DownloadConfig{
			Dir: defaultDownloadDir,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
