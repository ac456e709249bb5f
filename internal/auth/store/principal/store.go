// Package principal persists the identities that authorized formbridge
// against the remote store, together with their token pairs.
package principal

import (
	"context"
	"time"

	"formbridge/internal/auth/models"
	id "formbridge/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested principal does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists principals.
type Store interface {
	// UpsertByExternalID creates the principal on first login and refreshes
	// email and token pair on every later login.
	UpsertByExternalID(ctx context.Context, externalID, email string, pair models.TokenPair, now time.Time) (*models.Principal, error)

	// FindByID returns the principal with the given local ID.
	FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)

	// UpdateTokens persists a post-refresh token pair. When pair.RefreshToken
	// is empty the previously stored refresh token is retained: providers
	// only rotate the refresh token when they issue a new one.
	UpdateTokens(ctx context.Context, principalID id.PrincipalID, pair models.TokenPair, now time.Time) error
}
