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
const appName = "sesiweb"

// File names under the application directories.
const (
	configFileName     = "config.toml"
	tokenCacheFileName = "token.json"
	manifestFileName   = "downloads.db"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/sesiweb).
// On macOS, uses ~/Library/Application Support/sesiweb per Apple guidelines.
// Other platforms fall back to ~/.config/sesiweb.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir("XDG_CONFIG_HOME", home, ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for application
// data such as the download manifest. On Linux, respects XDG_DATA_HOME.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir("XDG_DATA_HOME", home, filepath.Join(".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// DefaultCacheDir returns the platform-specific directory for cache files
// such as the bearer token. On Linux, respects XDG_CACHE_HOME.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir("XDG_CACHE_HOME", home, ".cache")
	case platformDarwin:
		return filepath.Join(home, "Library", "Caches", appName)
	default:
		return filepath.Join(home, ".cache", appName)
	}
}

// linuxDir resolves an XDG base directory, falling back to the conventional
// dotted directory under home.
func linuxDir(xdgVar, home, fallback string) string {
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, fallback, appName)
}

// DefaultConfigPath returns the full path of the default config file, the
// fallback when neither SESIWEB_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// TokenCachePath resolves the token cache location: the configured path when
// set, otherwise the platform cache directory.
func (c *Config) TokenCachePath() string {
	if c.Auth.TokenCache != "" {
		return c.Auth.TokenCache
	}

	dir := DefaultCacheDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, tokenCacheFileName)
}

// ManifestPath resolves the download manifest location: the configured path
// when set, otherwise the platform data directory.
func (c *Config) ManifestPath() string {
	if c.Download.Manifest != "" {
		return c.Download.Manifest
	}

	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, manifestFileName)
}
