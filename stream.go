package sesiweb

import (
	"io"
	"net/http"
)

// DownloadStream is a scoped handle over a binary API response. Read streams
// the payload without buffering it; Close releases the underlying connection
// and must be called on every exit path.
type DownloadStream struct {
	body          io.ReadCloser
	contentLength int64
	closed        bool
}

func newDownloadStream(resp *http.Response) *DownloadStream {
	return &DownloadStream{body: resp.Body, contentLength: resp.ContentLength}
}

func (s *DownloadStream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

// Close is safe to call more than once.
func (s *DownloadStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// ContentLength reports the server-declared payload size, -1 when unknown.
func (s *DownloadStream) ContentLength() int64 {
	return s.contentLength
}
