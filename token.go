package sesiweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tokenExpirySlack is subtracted from the server-reported token lifetime so
// a token is never presented within moments of its real expiry.
const tokenExpirySlack = 2 * time.Second

// Credentials are the client id and secret of an API application, created
// under Services on the vendor account page.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// AccessToken is a bearer token together with its absolute expiry.
type AccessToken struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// Valid reports whether the token is present and not yet expired.
func (t AccessToken) Valid() bool {
	return t.Token != "" && time.Now().Before(t.Expiry)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// exchangeToken trades application credentials for a bearer token via HTTP
// Basic auth against tokenURL. Endpoints whose path ends in /token follow
// the standard client-credentials grant and get grant_type in the form body;
// the vendor's application_token endpoint wants an empty body. The exchange
// is a single attempt, failures are not retried.
func exchangeToken(ctx context.Context, httpClient *http.Client, tokenURL string, creds Credentials) (AccessToken, error) {
	form := url.Values{}
	if isStandardTokenPath(tokenURL) {
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("sesiweb: creating token request: %w", err)
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	if len(form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sesiweb: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sesiweb: reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, &AuthorizationError{
			StatusCode: resp.StatusCode,
			Message:    extractTraceback(resp.StatusCode, string(body)),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, fmt.Errorf("sesiweb: decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("sesiweb: token response carries no access_token")
	}

	return AccessToken{
		Token:  tr.AccessToken,
		Expiry: time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpirySlack),
	}, nil
}

// isStandardTokenPath reports whether the URL path names a standard OAuth2
// token endpoint. A trailing slash does not change the answer.
func isStandardTokenPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), "/token")
}
