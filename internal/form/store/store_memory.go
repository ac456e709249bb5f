package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"formbridge/internal/form/models"
	id "formbridge/pkg/domain"
	"formbridge/pkg/platform/sentinel"
)

// MemoryStore keeps forms in process memory. Suited to tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	forms map[id.FormID]*models.Form
}

func NewMemory() *MemoryStore {
	return &MemoryStore{forms: make(map[id.FormID]*models.Form)}
}

func (s *MemoryStore) Create(ctx context.Context, f *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.forms[f.ID]; exists {
		return fmt.Errorf("form %s already exists: %w", f.ID, sentinel.ErrConflict)
	}
	s.forms[f.ID] = copyForm(f)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, formID id.FormID) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.forms[formID]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", formID, sentinel.ErrNotFound)
	}
	return copyForm(f), nil
}

func (s *MemoryStore) ListByCreator(ctx context.Context, creatorID id.PrincipalID) ([]*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Form
	for _, f := range s.forms {
		if f.CreatorID == creatorID {
			out = append(out, copyForm(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// copyForm detaches the stored value from the caller's, questions included.
func copyForm(f *models.Form) *models.Form {
	c := *f
	c.Questions = make([]models.Question, len(f.Questions))
	copy(c.Questions, f.Questions)
	for i := range c.Questions {
		if opts := c.Questions[i].Options; opts != nil {
			c.Questions[i].Options = append([]models.SelectOption(nil), opts...)
		}
	}
	return &c
}
