package sesiweb

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check for them behind the typed errors
// the operations return.
var (
	// ErrNoBuilds is returned by LatestBuild when the listing, after any
	// filtering, contains no entries.
	ErrNoBuilds = errors.New("sesiweb: no builds matched")

	// ErrBinaryResponse is returned by Call when the server answered with a
	// binary payload; the command must go through CallStream instead.
	ErrBinaryResponse = errors.New("sesiweb: unexpected binary response")

	// ErrNotBinary is returned by CallStream when the server answered with
	// JSON instead of a binary payload.
	ErrNotBinary = errors.New("sesiweb: response is not a binary stream")

	// ErrUnknownFilterKey is wrapped by FilterKeyError.
	ErrUnknownFilterKey = errors.New("sesiweb: unknown filter key")

	// ErrNoDownloadURL is returned when a build download record carries no
	// signed URL to fetch from.
	ErrNoDownloadURL = errors.New("sesiweb: build has no download URL")

	// ErrChecksumMismatch is wrapped by ChecksumError.
	ErrChecksumMismatch = errors.New("sesiweb: checksum mismatch")

	// ErrSizeMismatch is returned when a downloaded build's byte count does
	// not match the size the API reported.
	ErrSizeMismatch = errors.New("sesiweb: size mismatch")
)

// AuthorizationError reports a failed token exchange. The message is
// extracted from the response body by the traceback heuristic.
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("sesiweb: authorization failed: HTTP %d: %s", e.StatusCode, e.Message)
}

// APIError reports a non-200 answer to an API call. The message is extracted
// from the response body by the traceback heuristic.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sesiweb: HTTP %d: %s", e.StatusCode, e.Message)
}

// ChecksumError reports a downloaded build whose MD5 digest does not match
// the one the API published for it.
type ChecksumError struct {
	Filename string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("sesiweb: %s: expected MD5 %s, got %s", e.Filename, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// FilterKeyError reports a build filter key that names no build field.
type FilterKeyError struct {
	Key string
}

func (e *FilterKeyError) Error() string {
	return fmt.Sprintf("sesiweb: unknown filter key %q", e.Key)
}

func (e *FilterKeyError) Unwrap() error {
	return ErrUnknownFilterKey
}
