package sesiweb

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// throttledTransport gates outbound requests through a token bucket before
// handing them to the wrapped RoundTripper.
type throttledTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func newThrottledTransport(rps, burst int, next http.RoundTripper) (*throttledTransport, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("sesiweb: rate limit %d/s with burst %d, both must be positive", rps, burst)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &throttledTransport{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		next:    next,
	}, nil
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("sesiweb: waiting for rate limiter: %w", err)
	}
	return t.next.RoundTrip(req)
}
