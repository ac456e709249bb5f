// Package pkce generates the per-login-attempt secrets for the OAuth2 PKCE
// flow (RFC 7636): a state token binding the callback to this process and a
// code verifier whose S256 challenge is sent with the authorization request.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	stateBytes    = 16
	verifierBytes = 32
)

// Params holds the secrets of one login attempt.
type Params struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
}

// Generate produces a fresh state/verifier/challenge triple. The only failure
// mode is an entropy-source failure, which is surfaced to the caller.
func Generate() (Params, error) {
	state, err := randomToken(stateBytes)
	if err != nil {
		return Params{}, fmt.Errorf("generate state: %w", err)
	}
	verifier, err := randomToken(verifierBytes)
	if err != nil {
		return Params{}, fmt.Errorf("generate code verifier: %w", err)
	}
	return Params{
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: ChallengeS256(verifier),
	}, nil
}

// ChallengeS256 computes code_challenge = BASE64URL(SHA256(verifier)) per
// RFC 7636 section 4.2.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
