// Package provider wraps the remote store's OAuth2 endpoints: building the
// PKCE authorization URL, exchanging an authorization code, and exchanging a
// refresh token. Client credentials are sent as Basic auth on the token
// endpoint, which the provider requires.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"formbridge/internal/auth/models"
	"formbridge/internal/platform/config"
	"formbridge/pkg/platform/sentinel"
)

// Client performs OAuth2 exchanges against the provider's token endpoint.
type Client struct {
	conf    *oauth2.Config
	timeout time.Duration
}

// New constructs a provider client from configuration.
func New(cfg config.Provider) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		timeout: 15 * time.Second,
	}
}

// AuthCodeURL builds the authorization URL for one login attempt, embedding
// the state and the S256 code challenge.
func (c *Client) AuthCodeURL(state, codeChallenge string) string {
	return c.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades an authorization code plus its verifier for a token pair.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier string) (models.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.conf.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return models.TokenPair{}, translateExchangeError("code exchange", err)
	}
	return models.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// Refresh trades a refresh token for a fresh token pair. When the provider
// does not rotate the refresh token, the returned pair carries the one passed
// in (oauth2.TokenSource retains it), satisfying the broker's retention rule.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	source := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return models.TokenPair{}, translateExchangeError("token refresh", err)
	}
	return models.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// translateExchangeError maps oauth2 failures onto sentinels: a definitive
// rejection by the token endpoint (4xx) means the grant is dead, anything
// else is transport trouble.
func translateExchangeError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.Response.StatusCode
		if code >= http.StatusBadRequest && code < http.StatusInternalServerError &&
			code != http.StatusTooManyRequests {
			return fmt.Errorf("%s rejected (status %d): %w", op, code, sentinel.ErrTokenRejected)
		}
		return fmt.Errorf("%s failed (status %d): %w", op, code, sentinel.ErrUnavailable)
	}
	return fmt.Errorf("%s failed: %w: %w", op, err, sentinel.ErrUnavailable)
}
