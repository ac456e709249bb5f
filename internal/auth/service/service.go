// Package service implements the login lifecycle: starting a PKCE
// authorization attempt, completing it at the callback, and projecting
// principal profiles.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"formbridge/internal/airtable"
	"formbridge/internal/auth/models"
	"formbridge/internal/auth/pkce"
	"formbridge/internal/auth/store/attempt"
	"formbridge/internal/auth/store/principal"
	"formbridge/internal/platform/metrics"
	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/sentinel"
)

// Provider is the slice of the OAuth client the login flow needs.
type Provider interface {
	AuthCodeURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, codeVerifier string) (models.TokenPair, error)
}

// Directory resolves the identity behind a freshly issued access token.
type Directory interface {
	WhoAmI(ctx context.Context, token string) (*airtable.Identity, error)
}

// SessionMinter issues the bearer token the frontend holds for a principal.
type SessionMinter interface {
	GeneratePrincipalToken(principalID id.PrincipalID) (string, error)
}

type Service struct {
	attempts   attempt.Store
	principals principal.Store
	provider   Provider
	directory  Directory
	sessions   SessionMinter
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func New(
	attempts attempt.Store,
	principals principal.Store,
	provider Provider,
	directory Directory,
	sessions SessionMinter,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		attempts:   attempts,
		principals: principals,
		provider:   provider,
		directory:  directory,
		sessions:   sessions,
		metrics:    m,
		log:        log,
	}
}

// BeginLogin mints fresh PKCE material, caches the attempt under its state,
// and returns the authorization URL to redirect the browser to.
func (s *Service) BeginLogin(ctx context.Context, now time.Time) (string, error) {
	params, err := pkce.Generate()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate authorization parameters")
	}
	if err := s.attempts.Put(ctx, params.State, params.CodeVerifier, now); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "cache authorization attempt")
	}

	s.metrics.IncLoginsStarted()
	s.log.Info("login started", "state", params.State)
	return s.provider.AuthCodeURL(params.State, params.CodeChallenge), nil
}

// CompleteLogin consumes the attempt identified by state, exchanges the code,
// resolves the provider identity, and returns a session token for the
// resulting principal. An unknown, expired, or already-consumed state fails
// before any provider call is made.
func (s *Service) CompleteLogin(ctx context.Context, state, code string, now time.Time) (string, error) {
	if state == "" || code == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "missing state or code")
	}

	codeVerifier, err := s.attempts.Take(ctx, state, now)
	if err != nil {
		s.metrics.IncLoginsFailed()
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "login attempt is invalid or has expired")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "consume authorization attempt")
	}

	pair, err := s.provider.Exchange(ctx, code, codeVerifier)
	if err != nil {
		s.metrics.IncLoginsFailed()
		if errors.Is(err, sentinel.ErrTokenRejected) {
			return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "authorization code was rejected")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "token exchange")
	}

	identity, err := s.directory.WhoAmI(ctx, pair.AccessToken)
	if err != nil {
		s.metrics.IncLoginsFailed()
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "resolve identity")
	}

	p, err := s.principals.UpsertByExternalID(ctx, identity.ID, identity.Email, pair, now)
	if err != nil {
		s.metrics.IncLoginsFailed()
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist principal")
	}

	session, err := s.sessions.GeneratePrincipalToken(p.ID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "mint session token")
	}

	s.metrics.IncLoginsCompleted()
	s.log.Info("login completed", "principal_id", p.ID, "external_id", identity.ID)
	return session, nil
}

// Profile returns the outward projection of a principal. Token material never
// leaves the store through this path.
func (s *Service) Profile(ctx context.Context, principalID id.PrincipalID) (models.Profile, error) {
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Profile{}, dErrors.Wrap(err, dErrors.CodeNotFound, "principal not found")
		}
		return models.Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "load principal")
	}
	return p.Profile(), nil
}
