package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/datacite/lupo-sub003/internal/domain"
)

const eventSelectList = `id, uuid, subj_id, obj_id, subj, obj, source_id, source_token,
			relation_type_id, source_doi, target_doi, source_relation_type_id,
			target_relation_type_id, total, license, occurred_at, created_at, updated_at`

// EventRepository stores relation events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

type eventRow struct {
	domain.RelationEvent
	SubjJSON []byte `db:"subj"`
	ObjJSON  []byte `db:"obj"`
}

func (r *eventRow) toEvent() (*domain.RelationEvent, error) {
	e := r.RelationEvent
	if len(r.SubjJSON) > 0 {
		if err := json.Unmarshal(r.SubjJSON, &e.Subj); err != nil {
			return nil, fmt.Errorf("decode subj of %s: %w", e.UUID, err)
		}
	}
	if len(r.ObjJSON) > 0 {
		if err := json.Unmarshal(r.ObjJSON, &e.Obj); err != nil {
			return nil, fmt.Errorf("decode obj of %s: %w", e.UUID, err)
		}
	}
	return &e, nil
}

// jsonOrNil encodes m, or returns an untyped nil so the column is NULL.
func jsonOrNil(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Create inserts e. Callers apply event defaults first.
func (r *EventRepository) Create(ctx context.Context, e *domain.RelationEvent) error {
	subj, err := jsonOrNil(e.Subj)
	if err != nil {
		return fmt.Errorf("encode subj: %w", err)
	}
	obj, err := jsonOrNil(e.Obj)
	if err != nil {
		return fmt.Errorf("encode obj: %w", err)
	}

	query := `
		INSERT INTO events (uuid, subj_id, obj_id, subj, obj, source_id, source_token,
			relation_type_id, source_doi, target_doi, source_relation_type_id,
			target_relation_type_id, total, license, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowxContext(ctx, query,
		e.UUID, e.SubjID, e.ObjID, subj, obj, e.SourceID, e.SourceToken,
		e.RelationTypeID, e.SourceDOI, e.TargetDOI, e.SourceRelationTypeID,
		e.TargetRelationTypeID, e.Total, e.License, e.OccurredAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByUUID returns the event with uuid.
func (r *EventRepository) GetByUUID(ctx context.Context, uuid string) (*domain.RelationEvent, error) {
	var row eventRow
	err := r.db.GetContext(ctx, &row, `SELECT `+eventSelectList+` FROM events WHERE uuid = $1`, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return row.toEvent()
}

// ListByIDRange returns the events with from <= id <= until in id order.
func (r *EventRepository) ListByIDRange(ctx context.Context, from, until int64) ([]domain.RelationEvent, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+eventSelectList+` FROM events WHERE id BETWEEN $1 AND $2 ORDER BY id`, from, until)
	if err != nil {
		return nil, fmt.Errorf("list events by id: %w", err)
	}

	out := make([]domain.RelationEvent, 0, len(rows))
	for i := range rows {
		e, decodeErr := rows[i].toEvent()
		if decodeErr != nil {
			return nil, decodeErr
		}
		out = append(out, *e)
	}
	return out, nil
}

// IDBounds returns the smallest and largest id, both 0 for an empty table.
func (r *EventRepository) IDBounds(ctx context.Context) (minID, maxID int64, err error) {
	return idBounds(ctx, r.db, "events")
}

// UpdateSubjObj replaces the subject and object metadata of the event.
func (r *EventRepository) UpdateSubjObj(ctx context.Context, uuid string, subj, obj map[string]any) error {
	subjJSON, err := jsonOrNil(subj)
	if err != nil {
		return fmt.Errorf("encode subj: %w", err)
	}
	objJSON, err := jsonOrNil(obj)
	if err != nil {
		return fmt.Errorf("encode obj: %w", err)
	}

	query := `
		UPDATE events
		SET subj = $2, obj = $3, updated_at = NOW()
		WHERE uuid = $1`
	if err = execExpectOneRow(ctx, r.db, query, uuid, subjJSON, objJSON); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update event metadata: %w", err)
	}
	return nil
}
