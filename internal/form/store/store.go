// Package store persists form schemas. Implementations must return forms
// whose question order matches the order they were created with, since
// conditional dependencies point backwards.
package store

import (
	"context"

	"formbridge/internal/form/models"
	id "formbridge/pkg/domain"
)

// Store is the persistence contract for forms.
type Store interface {
	// Create persists a new form. Returns sentinel.ErrConflict when the ID
	// already exists.
	Create(ctx context.Context, f *models.Form) error

	// FindByID loads one form. Returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, formID id.FormID) (*models.Form, error)

	// ListByCreator returns all forms owned by one principal, newest first.
	ListByCreator(ctx context.Context, creatorID id.PrincipalID) ([]*models.Form, error)
}
