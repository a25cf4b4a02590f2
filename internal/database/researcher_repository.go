package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/datacite/lupo-sub003/internal/domain"
)

// ResearcherRepository stores ORCID researchers.
type ResearcherRepository struct {
	db *sqlx.DB
}

// NewResearcherRepository creates a researcher repository.
func NewResearcherRepository(db *sqlx.DB) *ResearcherRepository {
	return &ResearcherRepository{db: db}
}

// Exists reports whether uid is stored.
func (r *ResearcherRepository) Exists(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM researchers WHERE uid = $1)`, uid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check researcher: %w", err)
	}
	return exists, nil
}

// Upsert inserts res or refreshes its names.
func (r *ResearcherRepository) Upsert(ctx context.Context, res *domain.Researcher) error {
	query := `
		INSERT INTO researchers (uid, name, given_names, family_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE
		SET name = EXCLUDED.name,
		    given_names = EXCLUDED.given_names,
		    family_name = EXCLUDED.family_name,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query, res.UID, res.Name, res.GivenNames, res.FamilyName).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert researcher: %w", err)
	}
	return nil
}
