package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/datacite/lupo-sub003/internal/domain"
)

// EnrichmentRepository stores applied enrichments.
type EnrichmentRepository struct {
	db *sqlx.DB
}

// NewEnrichmentRepository creates an enrichment repository.
func NewEnrichmentRepository(db *sqlx.DB) *EnrichmentRepository {
	return &EnrichmentRepository{db: db}
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// Create inserts en.
func (r *EnrichmentRepository) Create(ctx context.Context, en *domain.Enrichment) error {
	query := `
		INSERT INTO enrichments (doi, contributors, resources, field, action, original_value, enriched_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		en.DOI, nullJSON(en.Contributors), nullJSON(en.Resources), en.Field, en.Action,
		nullJSON(en.OriginalValue), nullJSON(en.EnrichedValue),
	).Scan(&en.ID, &en.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert enrichment: %w", err)
	}
	return nil
}
