package sesiweb

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadBuild streams the build installer from its signed URL into w,
// checking the byte count and MD5 digest against the download record on the
// way. The GET goes straight to the download host, no bearer token attached.
// Returns the number of bytes written, which on error may be partial.
func (c *Client) DownloadBuild(ctx context.Context, dl *BuildDownload, w io.Writer) (int64, error) {
	if dl.DownloadURL == "" {
		return 0, ErrNoDownloadURL
	}

	c.logger.Info("downloading build",
		slog.String("filename", dl.Filename),
		slog.Int64("size", dl.Size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.DownloadURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("sesiweb: creating download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sesiweb: downloading %s: %w", dl.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, checkStatus(resp)
	}

	digest := md5.New() //nolint:gosec // digest published by the download service
	n, err := io.Copy(io.MultiWriter(w, digest), resp.Body)
	if err != nil {
		return n, fmt.Errorf("sesiweb: streaming %s: %w", dl.Filename, err)
	}

	if dl.Size > 0 && n != dl.Size {
		return n, fmt.Errorf("sesiweb: %s: wrote %d of %d bytes: %w", dl.Filename, n, dl.Size, ErrSizeMismatch)
	}
	if dl.Hash != "" {
		if actual := hex.EncodeToString(digest.Sum(nil)); actual != dl.Hash {
			return n, &ChecksumError{Filename: dl.Filename, Expected: dl.Hash, Actual: actual}
		}
	}

	c.logger.Debug("download complete",
		slog.String("filename", dl.Filename),
		slog.Int64("bytes", n))
	return n, nil
}

// SaveBuild downloads the build into a temp file beside destPath and renames
// it into place once the size and digest check out, so a failed run never
// leaves a partial file at the destination.
func (c *Client) SaveBuild(ctx context.Context, dl *BuildDownload, destPath string) error {
	if destPath == "" {
		return errors.New("sesiweb: destination path must not be empty")
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".sesiweb-dl-*")
	if err != nil {
		return fmt.Errorf("sesiweb: creating temp file: %w", err)
	}

	renamed := false
	defer func() {
		tmp.Close()
		if !renamed {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := c.DownloadBuild(ctx, dl, tmp); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sesiweb: syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sesiweb: closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("sesiweb: moving download into place: %w", err)
	}
	renamed = true

	return nil
}
