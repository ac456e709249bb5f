// Package attempt stores pending PKCE login attempts: an opaque state token
// mapped to its code verifier, bounded by a TTL. Each entry is consumable
// exactly once even when callbacks race.
package attempt

import (
	"context"
	"time"
)

// Error Contract:
// All store methods follow this error pattern:
// - Take returns sentinel.ErrNotFound when the state is unknown or already
//   consumed, and sentinel.ErrExpired when its TTL has elapsed. The Redis
//   store reports expiry as ErrNotFound since keys expire server-side.
// - Return nil for successful operations.
// - Return wrapped errors with context for infrastructure failures.

// Store is the authorization session cache behind the login flow.
type Store interface {
	// Put records a pending attempt. A state collision cannot happen by
	// construction (states are high-entropy); Put overwrites if it does.
	Put(ctx context.Context, state, codeVerifier string, now time.Time) error

	// Take atomically reads and deletes the verifier for a state. It is
	// single-use: the first caller wins, every later caller gets
	// sentinel.ErrNotFound.
	Take(ctx context.Context, state string, now time.Time) (string, error)

	// SweepExpired removes entries past their TTL and reports how many.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
