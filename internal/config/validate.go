package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

// Validate checks a Config for values that would only fail later, deep
// inside a command. Credentials are not required here; commands that need
// them call RequireCredentials.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateURL("api.endpoint_url", cfg.API.EndpointURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("api.token_url", cfg.API.TokenURL); err != nil {
		errs = append(errs, err)
	}

	if _, err := cfg.APITimeout(); err != nil {
		errs = append(errs, err)
	}

	if cfg.API.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit must not be negative, got %d", cfg.API.RateLimit))
	}
	if cfg.API.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("api.rate_burst must not be negative, got %d", cfg.API.RateBurst))
	}

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	if !validLogFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("logging.format %q is not one of auto, text, json", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", key, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q must be an http or https URL", key, raw)
	}
	return nil
}

// APITimeout parses the configured request timeout. "0" and "" disable it.
func (c *Config) APITimeout() (time.Duration, error) {
	raw := c.API.Timeout
	if raw == "" || raw == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("api.timeout %q is not a duration: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("api.timeout must not be negative, got %s", raw)
	}
	return d, nil
}

// RequireCredentials fails with setup guidance when no client id or secret
// is configured. Commands that talk to the API call this before connecting.
func RequireCredentials(cfg *Config) error {
	if cfg.Auth.ClientID == "" || cfg.Auth.ClientSecret == "" {
		return fmt.Errorf("no API credentials configured: set %s and %s, or client_id and client_secret under [auth] in %s",
			EnvClientID, EnvClientSecret, DefaultConfigPath())
	}
	return nil
}
