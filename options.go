package sesiweb

import (
	"log/slog"
	"net/http"
	"time"
)

type options struct {
	endpointURL string
	tokenURL    string
	httpClient  *http.Client
	logger      *slog.Logger
	userAgent   string
	timeout     time.Duration
	rateLimit   int
	rateBurst   int
	token       AccessToken
}

func defaultOptions() options {
	return options{
		endpointURL: DefaultEndpointURL,
		tokenURL:    DefaultTokenURL,
		logger:      slog.Default(),
		userAgent:   defaultUserAgent,
	}
}

// Option adjusts a Client at construction.
type Option func(*options)

// WithEndpointURL points the client at a non-default API endpoint.
func WithEndpointURL(u string) Option {
	return func(o *options) { o.endpointURL = u }
}

// WithTokenURL points the token exchange at a non-default OAuth2 endpoint.
// Endpoints whose path ends in /token receive the standard
// grant_type=client_credentials form body.
func WithTokenURL(u string) Option {
	return func(o *options) { o.tokenURL = u }
}

// WithHTTPClient supplies the underlying http.Client. Timeout and rate limit
// options are applied on top of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger routes client logging to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithUserAgent overrides the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTimeout bounds every request, downloads included, to d.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit throttles outbound requests to rps per second with the given
// burst, keeping a busy caller under the API's rate ceiling instead of
// burning 429 retries.
func WithRateLimit(rps, burst int) Option {
	return func(o *options) {
		o.rateLimit = rps
		o.rateBurst = burst
	}
}

// WithAccessToken seeds the client with a previously issued token. The
// exchange is skipped while the token is valid; an expired one is ignored
// and the credentials are exchanged as usual.
func WithAccessToken(token AccessToken) Option {
	return func(o *options) { o.token = token }
}
