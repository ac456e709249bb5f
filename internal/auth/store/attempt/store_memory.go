package attempt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"formbridge/internal/auth/models"
	"formbridge/pkg/platform/sentinel"
)

// MemoryStore keeps pending attempts in process memory. It is the default
// cache for single-instance deployments; the Redis store covers shared state.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	attempts map[string]models.AuthorizationAttempt
}

// NewMemory constructs an empty in-memory attempt store with the given TTL.
func NewMemory(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		attempts: make(map[string]models.AuthorizationAttempt),
	}
}

func (s *MemoryStore) Put(_ context.Context, state, codeVerifier string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[state] = models.AuthorizationAttempt{
		State:        state,
		CodeVerifier: codeVerifier,
		CreatedAt:    now,
	}
	return nil
}

// Take holds the lock across the read and the delete so a state is consumable
// by exactly one caller even under a replay race.
func (s *MemoryStore) Take(_ context.Context, state string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[state]
	if !ok {
		return "", fmt.Errorf("login attempt not found: %w", sentinel.ErrNotFound)
	}
	delete(s.attempts, state)

	if attempt.Expired(s.ttl, now) {
		return "", fmt.Errorf("login attempt expired: %w", sentinel.ErrExpired)
	}
	return attempt.CodeVerifier, nil
}

// SweepExpired removes all attempts past their TTL as of the given time.
// The time parameter is injected for testability (no hidden time.Now() calls).
func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for state, attempt := range s.attempts {
		if attempt.Expired(s.ttl, now) {
			delete(s.attempts, state)
			deleted++
		}
	}
	return deleted, nil
}
