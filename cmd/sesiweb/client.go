package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/aaronsmithtv/sesiweb"
	"github.com/aaronsmithtv/sesiweb/internal/config"
	"github.com/aaronsmithtv/sesiweb/internal/tokencache"
)

// newAPIClient authenticates against the web API, reusing a cached bearer
// token when one is still valid for this client id. A freshly exchanged
// token is written back to the cache for the next invocation.
func newAPIClient(ctx context.Context, logger *slog.Logger) (*sesiweb.Client, error) {
	if err := config.RequireCredentials(resolvedCfg); err != nil {
		return nil, err
	}

	opts, err := clientOptions(logger)
	if err != nil {
		return nil, err
	}

	cachePath := resolvedCfg.TokenCachePath()
	cached := loadCachedToken(cachePath, logger)
	if cached.Valid() {
		opts = append(opts, sesiweb.WithAccessToken(cached))
	}

	creds := sesiweb.Credentials{
		ClientID:     resolvedCfg.Auth.ClientID,
		ClientSecret: resolvedCfg.Auth.ClientSecret,
	}

	client, err := sesiweb.New(ctx, creds, opts...)
	if err != nil {
		return nil, err
	}

	// Persist a newly exchanged token; a reused one is already on disk.
	if tok := client.Token(); tok.Token != cached.Token {
		saveCachedToken(cachePath, tok, logger)
	}

	return client, nil
}

func clientOptions(logger *slog.Logger) ([]sesiweb.Option, error) {
	opts := []sesiweb.Option{
		sesiweb.WithLogger(logger),
		sesiweb.WithEndpointURL(resolvedCfg.API.EndpointURL),
		sesiweb.WithTokenURL(resolvedCfg.API.TokenURL),
	}

	timeout, err := resolvedCfg.APITimeout()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, sesiweb.WithTimeout(timeout))
	}

	if resolvedCfg.API.RateLimit > 0 {
		opts = append(opts, sesiweb.WithRateLimit(resolvedCfg.API.RateLimit, resolvedCfg.API.RateBurst))
	}

	if resolvedCfg.API.UserAgent != "" {
		opts = append(opts, sesiweb.WithUserAgent(resolvedCfg.API.UserAgent))
	}

	return opts, nil
}

// loadCachedToken returns the cached bearer token, or a zero token when the
// cache is cold, unreadable, or belongs to different credentials.
func loadCachedToken(path string, logger *slog.Logger) sesiweb.AccessToken {
	if path == "" {
		return sesiweb.AccessToken{}
	}

	f, err := tokencache.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("ignoring unreadable token cache",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return sesiweb.AccessToken{}
	}

	if !f.IssuedTo(resolvedCfg.Auth.ClientID) {
		logger.Debug("token cache belongs to another client id")
		return sesiweb.AccessToken{}
	}

	return sesiweb.AccessToken{Token: f.Token.AccessToken, Expiry: f.Token.Expiry}
}

// saveCachedToken best-effort persists the token; a failure only costs the
// next run a fresh exchange.
func saveCachedToken(path string, tok sesiweb.AccessToken, logger *slog.Logger) {
	if path == "" {
		return
	}

	f := tokencache.NewFile(&oauth2.Token{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		Expiry:      tok.Expiry,
	}, resolvedCfg.Auth.ClientID)

	if err := tokencache.Save(path, f); err != nil {
		logger.Warn("could not persist token cache",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
