package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge/internal/platform/config"
	"formbridge/pkg/platform/sentinel"
)

func testConfig(tokenURL string) config.Provider {
	return config.Provider{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "http://localhost:8080/auth/callback",
		Scopes:       []string{"data.records:read", "data.records:write"},
		AuthURL:      "https://provider.example/oauth2/v1/authorize",
		TokenURL:     tokenURL,
	}
}

func TestAuthCodeURL(t *testing.T) {
	c := New(testConfig("https://provider.example/oauth2/v1/token"))

	raw := c.AuthCodeURL("state-abc", "challenge-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "challenge-xyz", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "data.records:read")
}

func TestExchange(t *testing.T) {
	var gotForm url.Values
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	pair, err := c.Exchange(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)

	assert.Equal(t, "at-1", pair.AccessToken)
	assert.Equal(t, "rt-1", pair.RefreshToken)
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "code-1", gotForm.Get("code"))
	assert.Equal(t, "verifier-1", gotForm.Get("code_verifier"))
	assert.Equal(t, "client-1", gotUser)
	assert.Equal(t, "secret-1", gotPass)
}

func TestExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Exchange(context.Background(), "bad-code", "verifier-1")
	assert.ErrorIs(t, err, sentinel.ErrTokenRejected)
}

func TestRefresh(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	pair, err := c.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "rt-1", gotForm.Get("refresh_token"))
	assert.Equal(t, "at-2", pair.AccessToken)
	assert.Equal(t, "rt-2", pair.RefreshToken)
}

func TestRefreshKeepsUnrotatedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	pair, err := c.Refresh(context.Background(), "rt-keep")
	require.NoError(t, err)

	assert.Equal(t, "at-2", pair.AccessToken)
	assert.Equal(t, "rt-keep", pair.RefreshToken)
}

func TestRefreshUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Refresh(context.Background(), "rt-1")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
