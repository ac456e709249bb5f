package models

import (
	"time"

	id "formbridge/pkg/domain"
)

// Principal is the identity at the remote store on whose behalf formbridge
// calls the schema and record APIs. It owns exactly one token pair. Token
// fields are never serialized into an HTTP response; Profile is the outward
// shape.
type Principal struct {
	ID         id.PrincipalID
	ExternalID string
	Email      string

	// AccessToken is the token last successfully used or refreshed.
	// RefreshToken rotates only when the provider issues a replacement.
	AccessToken  string
	RefreshToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the externally visible projection of a Principal.
type Profile struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile strips token material from a Principal.
func (p *Principal) Profile() Profile {
	return Profile{
		ID:         p.ID.String(),
		ExternalID: p.ExternalID,
		Email:      p.Email,
		CreatedAt:  p.CreatedAt,
	}
}

// TokenPair is an access/refresh token pair issued by the provider.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthorizationAttempt is one in-flight PKCE login: the state token handed to
// the provider and the verifier that must accompany the code exchange. Each
// attempt is consumed exactly once, either by the callback or by expiry.
type AuthorizationAttempt struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}

// Expired reports whether the attempt's TTL has elapsed as of now.
func (a AuthorizationAttempt) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(a.CreatedAt) > ttl
}
