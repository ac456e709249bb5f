package principal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"formbridge/internal/auth/models"
	id "formbridge/pkg/domain"
	"formbridge/pkg/platform/sentinel"
)

// MemoryStore stores principals in memory for tests/dev.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[id.PrincipalID]*models.Principal
	byExternal map[string]id.PrincipalID
}

// NewMemory constructs an empty in-memory principal store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[id.PrincipalID]*models.Principal),
		byExternal: make(map[string]id.PrincipalID),
	}
}

func (s *MemoryStore) UpsertByExternalID(_ context.Context, externalID, email string, pair models.TokenPair, now time.Time) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pid, ok := s.byExternal[externalID]; ok {
		existing := s.byID[pid]
		existing.Email = email
		existing.AccessToken = pair.AccessToken
		if pair.RefreshToken != "" {
			existing.RefreshToken = pair.RefreshToken
		}
		existing.UpdatedAt = now
		copied := *existing
		return &copied, nil
	}

	p := &models.Principal{
		ID:           id.PrincipalID(uuid.New()),
		ExternalID:   externalID,
		Email:        email,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[p.ID] = p
	s.byExternal[externalID] = p.ID
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) FindByID(_ context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[principalID]
	if !ok {
		return nil, fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) UpdateTokens(_ context.Context, principalID id.PrincipalID, pair models.TokenPair, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[principalID]
	if !ok {
		return fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	p.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		p.RefreshToken = pair.RefreshToken
	}
	p.UpdatedAt = now
	return nil
}
