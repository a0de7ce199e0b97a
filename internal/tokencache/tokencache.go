// Package tokencache persists the API bearer token between runs, so every
// invocation does not burn a fresh token exchange against the OAuth2
// endpoint. The cache is a single JSON file holding the token plus metadata
// about the client id that produced it.
package tokencache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const clientIDKey = "client_id"

// File is the on-disk shape of a cached token.
type File struct {
	Token *oauth2.Token     `json:"token"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// NewFile wraps a token with the client id it was issued to.
func NewFile(token *oauth2.Token, clientID string) *File {
	return &File{
		Token: token,
		Meta:  map[string]string{clientIDKey: clientID},
	}
}

// IssuedTo reports whether the cached token was issued to clientID. A token
// obtained with different credentials must not be reused.
func (f *File) IssuedTo(clientID string) bool {
	return f.Meta[clientIDKey] == clientID
}

// Load reads a cached token from path. A missing file surfaces as an
// fs.ErrNotExist error for the caller to treat as a cold cache.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing token cache %s: %w", path, err)
	}
	if f.Token == nil {
		return nil, fmt.Errorf("token cache %s holds no token", path)
	}
	return &f, nil
}

// Save writes the cache atomically with owner-only permissions. The token is
// written to a temp file in the same directory and renamed into place, so a
// crash mid-write never corrupts an existing cache.
func Save(path string, f *File) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing token cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing token cache: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("restricting token cache permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing token cache: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing token cache: %w", err)
	}
	return nil
}
