package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"formbridge/internal/form/models"
	id "formbridge/pkg/domain"
	"formbridge/pkg/platform/sentinel"
)

// PostgresStore persists forms in PostgreSQL. Questions are stored as a JSONB
// document on the form row; they are only ever read and written as a whole,
// in order.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed form store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, f *models.Form) error {
	questions, err := json.Marshal(f.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forms (id, creator_id, name, base_id, table_id, questions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(f.ID), uuid.UUID(f.CreatorID), f.Name, f.BaseID, f.TableID, questions, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("form %s already exists: %w", f.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create form: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, formID id.FormID) (*models.Form, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, creator_id, name, base_id, table_id, questions, created_at, updated_at
		FROM forms
		WHERE id = $1
	`, uuid.UUID(formID))

	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("form %s: %w", formID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find form: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) ListByCreator(ctx context.Context, creatorID id.PrincipalID) ([]*models.Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, creator_id, name, base_id, table_id, questions, created_at, updated_at
		FROM forms
		WHERE creator_id = $1
		ORDER BY created_at DESC, id
	`, uuid.UUID(creatorID))
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var out []*models.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("list forms: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return out, nil
}

func scanForm(row rowScanner) (*models.Form, error) {
	var (
		f         models.Form
		formID    uuid.UUID
		creatorID uuid.UUID
		questions []byte
	)
	err := row.Scan(&formID, &creatorID, &f.Name, &f.BaseID, &f.TableID, &questions, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &f.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	f.ID = id.FormID(formID)
	f.CreatorID = id.PrincipalID(creatorID)
	return &f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
