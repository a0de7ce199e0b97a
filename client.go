package sesiweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default service endpoints.
const (
	DefaultEndpointURL = "https://www.sidefx.com/api/"
	DefaultTokenURL    = "https://www.sidefx.com/oauth2/application_token"
)

// Retry tuning for rate-limited calls. Only HTTP 429 and transport errors
// are retried; every other status is the server's final answer.
const (
	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

const (
	defaultUserAgent       = "sesiweb/2.0"
	contentTypeForm        = "application/x-www-form-urlencoded"
	contentTypeOctetStream = "application/octet-stream"
	maxErrBodySize         = 64 << 10
)

// Client is an authenticated session against the SideFX Web API. It holds
// one bearer token, obtained during New and attached to every call; the
// token is never refreshed, so a long-lived process makes a new Client once
// the token expires. All fields are fixed after New returns, which makes a
// Client safe for concurrent use.
type Client struct {
	endpointURL string
	tokenURL    string
	httpClient  *http.Client
	token       AccessToken
	userAgent   string
	logger      *slog.Logger

	// sleepFunc waits between retries, tests swap it for an instant return.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New exchanges the application credentials for a bearer token and returns
// a ready Client. A rejected id or secret surfaces as *AuthorizationError.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	settings := defaultOptions()
	for _, opt := range opts {
		opt(&settings)
	}

	httpClient := settings.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if settings.timeout > 0 {
		httpClient.Timeout = settings.timeout
	}
	if settings.rateLimit > 0 {
		transport, err := newThrottledTransport(settings.rateLimit, settings.rateBurst, httpClient.Transport)
		if err != nil {
			return nil, err
		}
		httpClient.Transport = transport
	}

	c := &Client{
		endpointURL: settings.endpointURL,
		tokenURL:    settings.tokenURL,
		httpClient:  httpClient,
		userAgent:   settings.userAgent,
		logger:      settings.logger,
		sleepFunc:   timeSleep,
	}

	if settings.token.Valid() {
		c.token = settings.token
		c.logger.Debug("reusing supplied access token", slog.Time("expiry", c.token.Expiry))
		return c, nil
	}

	token, err := exchangeToken(ctx, httpClient, c.tokenURL, creds)
	if err != nil {
		return nil, err
	}
	c.token = token
	c.logger.Debug("access token acquired", slog.Time("expiry", token.Expiry))

	return c, nil
}

// Token returns the bearer token the client authenticated with, for callers
// that persist it across runs.
func (c *Client) Token() AccessToken {
	return c.token
}

// Call posts command with the kwargs record and decodes the JSON answer into
// out. A nil out discards the answer. Commands answered with a binary
// payload fail with ErrBinaryResponse and must go through CallStream.
func (c *Client) Call(ctx context.Context, command string, kwargs, out any) error {
	resp, err := c.submit(ctx, newEnvelope(command, kwargs))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if isOctetStream(resp.Header) {
		return fmt.Errorf("sesiweb: %s: %w", command, ErrBinaryResponse)
	}

	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sesiweb: decoding %s response: %w", command, err)
	}
	return nil
}

// CallStream posts command and hands back the binary answer as a
// DownloadStream. The caller owns the stream and must Close it on every
// path. Commands answered with JSON fail with ErrNotBinary.
func (c *Client) CallStream(ctx context.Context, command string, kwargs any) (*DownloadStream, error) {
	resp, err := c.submit(ctx, newEnvelope(command, kwargs))
	if err != nil {
		return nil, err
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	if !isOctetStream(resp.Header) {
		resp.Body.Close()
		return nil, fmt.Errorf("sesiweb: %s: %w", command, ErrNotBinary)
	}

	return newDownloadStream(resp), nil
}

// submit posts one command envelope and returns the raw response. Transport
// failures and HTTP 429 are retried up to maxRetries times with exponential
// backoff, honoring a numeric Retry-After header when the server sends one.
func (c *Client) submit(ctx context.Context, env requestEnvelope) (*http.Response, error) {
	form, err := env.encodeForm()
	if err != nil {
		return nil, err
	}

	var attempt int
	for {
		resp, err := c.post(ctx, form)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("sesiweb: %s: %w", env.Command, ctx.Err())
			}
			if attempt >= maxRetries {
				return nil, fmt.Errorf("sesiweb: %s failed after %d retries: %w", env.Command, maxRetries, err)
			}
			backoff := calcBackoff(attempt)
			c.logger.Warn("request failed, retrying",
				slog.String("command", env.Command),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()))
			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("sesiweb: %s: %w", env.Command, err)
			}
			attempt++
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			drainBody(resp)
			backoff := retryBackoff(resp, attempt)
			c.logger.Warn("rate limited, retrying",
				slog.String("command", env.Command),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff))
			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("sesiweb: %s: %w", env.Command, err)
			}
			attempt++
			continue
		}

		return resp, nil
	}
}

// post executes a single form POST with the bearer token attached.
func (c *Client) post(ctx context.Context, form string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, strings.NewReader(form))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token.Token)
	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("User-Agent", c.userAgent)

	return c.httpClient.Do(req)
}

// checkStatus turns any non-200 response into an *APIError carrying the
// message the traceback heuristic extracts from the body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		body = []byte("(failed to read response body)")
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    extractTraceback(resp.StatusCode, string(body)),
	}
}

func isOctetStream(h http.Header) bool {
	ct := h.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct == contentTypeOctetStream
	}
	return mediaType == contentTypeOctetStream
}

// retryBackoff picks the wait before the next attempt after a 429. A numeric
// Retry-After header wins over the computed backoff.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return calcBackoff(attempt)
}

// calcBackoff returns the exponential backoff for a retry attempt with
// +/- 25% jitter, capped at maxBackoff.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	jitter := backoff * jitterFraction * (2*rand.Float64() - 1) //nolint:gosec // jitter needs no crypto randomness
	return time.Duration(backoff + jitter)
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drainBody discards and closes a response body so the transport can reuse
// the connection for the next attempt.
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrBodySize))
	resp.Body.Close()
}
