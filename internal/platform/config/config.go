package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider captures everything needed to talk to the remote store's OAuth and
// REST endpoints. ClientID, ClientSecret and RedirectURI are opaque strings
// validated only for presence.
type Provider struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

// Redis captures optional Redis connection settings for the login attempt
// cache. An empty URL means the in-memory cache is used.
type Redis struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the full service configuration assembled from the environment.
type Server struct {
	Addr          string
	DatabaseURL   string
	FrontendURL   string
	JWTSigningKey string
	AttemptTTL    time.Duration
	Provider      Provider
	Redis         Redis
}

const (
	defaultAuthURL    = "https://airtable.com/oauth2/v1/authorize"
	defaultTokenURL   = "https://airtable.com/oauth2/v1/token"
	defaultAPIBaseURL = "https://api.airtable.com"
	defaultScopes     = "data.records:read data.records:write schema.bases:read user.email:read"

	// A callback arriving after this window must restart the flow.
	defaultAttemptTTL = 10 * time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("FORMBRIDGE_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		FrontendURL:   envOr("FRONTEND_URL", "http://localhost:5173"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AttemptTTL:    defaultAttemptTTL,
		Provider: Provider{
			ClientID:     os.Getenv("PROVIDER_CLIENT_ID"),
			ClientSecret: os.Getenv("PROVIDER_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("OAUTH_REDIRECT_URI"),
			Scopes:       strings.Fields(envOr("PROVIDER_SCOPES", defaultScopes)),
			AuthURL:      envOr("PROVIDER_AUTH_URL", defaultAuthURL),
			TokenURL:     envOr("PROVIDER_TOKEN_URL", defaultTokenURL),
			APIBaseURL:   envOr("PROVIDER_API_BASE_URL", defaultAPIBaseURL),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}

	if ttl := os.Getenv("LOGIN_ATTEMPT_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Server{}, fmt.Errorf("parse LOGIN_ATTEMPT_TTL: %w", err)
		}
		cfg.AttemptTTL = d
	}

	if err := cfg.Provider.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (p Provider) validate() error {
	switch {
	case p.ClientID == "":
		return fmt.Errorf("PROVIDER_CLIENT_ID is required")
	case p.ClientSecret == "":
		return fmt.Errorf("PROVIDER_CLIENT_SECRET is required")
	case p.RedirectURI == "":
		return fmt.Errorf("OAUTH_REDIRECT_URI is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
