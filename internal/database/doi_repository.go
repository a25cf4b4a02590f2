package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datacite/lupo-sub003/internal/domain"
)

// doiSelectList is the column list for SELECT on dois (xml is fetched separately).
const doiSelectList = `id, doi, client_id, provider_id, agency, aasm_state, schema_version,
			metadata, created, updated`

// DOIRepository reads and updates DOI records.
type DOIRepository struct {
	db *sqlx.DB
}

// NewDOIRepository creates a DOI repository.
func NewDOIRepository(db *sqlx.DB) *DOIRepository {
	return &DOIRepository{db: db}
}

type doiRow struct {
	ID            int64          `db:"id"`
	DOI           string         `db:"doi"`
	ClientID      string         `db:"client_id"`
	ProviderID    string         `db:"provider_id"`
	Agency        string         `db:"agency"`
	State         string         `db:"aasm_state"`
	SchemaVersion sql.NullString `db:"schema_version"`
	Metadata      []byte         `db:"metadata"`
	Created       time.Time      `db:"created"`
	Updated       time.Time      `db:"updated"`
}

// toRecord overlays the relational columns on the stored metadata document.
func (r *doiRow) toRecord() (*domain.Record, error) {
	var rec domain.Record
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.DOI, err)
		}
	}
	rec.ID = r.ID
	rec.DOI = strings.ToUpper(r.DOI)
	rec.UID = strings.ToLower(r.DOI)
	rec.Identifier = "https://doi.org/" + rec.UID
	rec.Prefix, rec.Suffix, _ = strings.Cut(rec.UID, "/")
	rec.ClientID = r.ClientID
	rec.ProviderID = r.ProviderID
	rec.Agency = r.Agency
	rec.State = r.State
	rec.SchemaVersion = r.SchemaVersion.String
	rec.Created = r.Created
	rec.Updated = r.Updated
	return &rec, nil
}

// Get returns the record for doi, matched case-insensitively.
func (r *DOIRepository) Get(ctx context.Context, doi string) (*domain.Record, error) {
	var row doiRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+doiSelectList+` FROM dois WHERE lower(doi) = lower($1)`, doi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doi: %w", err)
	}
	return row.toRecord()
}

// Create inserts rec and sets its id and timestamps. A DOI that already
// exists is left untouched and reported as created=false.
func (r *DOIRepository) Create(ctx context.Context, rec *domain.Record) (created bool, err error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode metadata: %w", err)
	}

	query := `
		INSERT INTO dois (doi, client_id, provider_id, agency, aasm_state, schema_version, metadata)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		ON CONFLICT (doi) DO NOTHING
		RETURNING id, created, updated`
	err = r.db.QueryRowxContext(ctx, query,
		strings.ToLower(rec.DOI), rec.ClientID, rec.ProviderID, rec.Agency, rec.State, rec.SchemaVersion, doc,
	).Scan(&rec.ID, &rec.Created, &rec.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create doi: %w", err)
	}
	return true, nil
}

// GetByAgency is Get restricted to records registered by agency.
func (r *DOIRepository) GetByAgency(ctx context.Context, doi, agency string) (*domain.Record, error) {
	var row doiRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+doiSelectList+` FROM dois WHERE lower(doi) = lower($1) AND agency = $2`, doi, agency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doi by agency: %w", err)
	}
	return row.toRecord()
}

// ListByIDRange returns the records with from <= id <= until in id order.
func (r *DOIRepository) ListByIDRange(ctx context.Context, from, until int64) ([]domain.Record, error) {
	var rows []doiRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+doiSelectList+` FROM dois WHERE id BETWEEN $1 AND $2 ORDER BY id`, from, until)
	if err != nil {
		return nil, fmt.Errorf("list dois by id: %w", err)
	}

	out := make([]domain.Record, 0, len(rows))
	for i := range rows {
		rec, decodeErr := rows[i].toRecord()
		if decodeErr != nil {
			return nil, decodeErr
		}
		out = append(out, *rec)
	}
	return out, nil
}

// IDBounds returns the smallest and largest id, both 0 for an empty table.
func (r *DOIRepository) IDBounds(ctx context.Context) (minID, maxID int64, err error) {
	return idBounds(ctx, r.db, "dois")
}

// ListDOIsByClient returns every DOI of the client.
func (r *DOIRepository) ListDOIsByClient(ctx context.Context, clientID string) ([]string, error) {
	var dois []string
	err := r.db.SelectContext(ctx, &dois,
		`SELECT doi FROM dois WHERE lower(client_id) = lower($1) ORDER BY id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list dois by client: %w", err)
	}
	return dois, nil
}

// UpdateClient moves doi to clientID.
func (r *DOIRepository) UpdateClient(ctx context.Context, doi, clientID string) error {
	query := `
		UPDATE dois
		SET client_id = $2, updated = NOW()
		WHERE lower(doi) = lower($1)`
	if err := execExpectOneRow(ctx, r.db, query, doi, clientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// UpdateProvider moves every DOI of clientID to providerID.
func (r *DOIRepository) UpdateProvider(ctx context.Context, clientID, providerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE dois
		SET provider_id = $2, updated = NOW()
		WHERE lower(client_id) = lower($1)`, clientID, providerID)
	if err != nil {
		return 0, fmt.Errorf("update provider: %w", err)
	}
	return result.RowsAffected()
}

// UpdateSchemaVersion sets the schema version of doi.
func (r *DOIRepository) UpdateSchemaVersion(ctx context.Context, doi, version string) error {
	query := `
		UPDATE dois
		SET schema_version = $2, updated = NOW()
		WHERE lower(doi) = lower($1)`
	if err := execExpectOneRow(ctx, r.db, query, doi, version); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update schema version: %w", err)
	}
	return nil
}

// UpdateMetadata replaces the stored metadata document of rec.
func (r *DOIRepository) UpdateMetadata(ctx context.Context, rec *domain.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	query := `
		UPDATE dois
		SET metadata = $2, updated = NOW()
		WHERE lower(doi) = lower($1)`
	if err = execExpectOneRow(ctx, r.db, query, rec.DOI, doc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// XML returns the stored DataCite XML of doi, nil when none was stored.
func (r *DOIRepository) XML(ctx context.Context, doi string) ([]byte, error) {
	var xml []byte
	err := r.db.GetContext(ctx, &xml, `SELECT xml FROM dois WHERE lower(doi) = lower($1)`, doi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get xml: %w", err)
	}
	return xml, nil
}

func idBounds(ctx context.Context, db *sqlx.DB, table string) (minID, maxID int64, err error) {
	query := `SELECT COALESCE(MIN(id), 0), COALESCE(MAX(id), 0) FROM ` + table
	if err = db.QueryRowContext(ctx, query).Scan(&minID, &maxID); err != nil {
		return 0, 0, fmt.Errorf("%s id bounds: %w", table, err)
	}
	return minID, maxID, nil
}
