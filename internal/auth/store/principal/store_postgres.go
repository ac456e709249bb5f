package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"formbridge/internal/auth/models"
	id "formbridge/pkg/domain"
	"formbridge/pkg/platform/sentinel"
)

// PostgresStore persists principals in PostgreSQL. Schema lives in
// migrations/postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed principal store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) UpsertByExternalID(ctx context.Context, externalID, email string, pair models.TokenPair, now time.Time) (*models.Principal, error) {
	// NULLIF keeps the stored refresh token when the provider did not rotate.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO principals (id, external_id, email, access_token, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			email         = EXCLUDED.email,
			access_token  = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), principals.refresh_token),
			updated_at    = EXCLUDED.updated_at
		RETURNING id, external_id, email, access_token, refresh_token, created_at, updated_at
	`, uuid.New(), externalID, email, pair.AccessToken, pair.RefreshToken, now)

	p, err := scanPrincipal(row)
	if err != nil {
		return nil, fmt.Errorf("upsert principal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, email, access_token, refresh_token, created_at, updated_at
		FROM principals
		WHERE id = $1
	`, uuid.UUID(principalID))

	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateTokens(ctx context.Context, principalID id.PrincipalID, pair models.TokenPair, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE principals SET
			access_token  = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			updated_at    = $4
		WHERE id = $1
	`, uuid.UUID(principalID), pair.AccessToken, pair.RefreshToken, now)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*models.Principal, error) {
	var (
		p   models.Principal
		pid uuid.UUID
	)
	err := row.Scan(&pid, &p.ExternalID, &p.Email, &p.AccessToken, &p.RefreshToken, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.PrincipalID(pid)
	return &p, nil
}
