package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/job"
)

// jobSelectList is the column list for SELECT/RETURNING on jobs.
const jobSelectList = `id, queue, operation, payload, status, attempts, max_attempts,
			last_error, run_at, created_at, updated_at`

// JobRepository is the PostgreSQL job.Store.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ job.Store = (*JobRepository)(nil)

// jobRow scans payload through []byte so the driver buffer is copied.
type jobRow struct {
	ID          string    `db:"id"`
	Queue       string    `db:"queue"`
	Operation   string    `db:"operation"`
	Payload     []byte    `db:"payload"`
	Status      string    `db:"status"`
	Attempts    int       `db:"attempts"`
	MaxAttempts int       `db:"max_attempts"`
	LastError   *string   `db:"last_error"`
	RunAt       time.Time `db:"run_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r jobRow) toJob() *job.Job {
	return &job.Job{
		ID:          r.ID,
		Queue:       r.Queue,
		Operation:   r.Operation,
		Payload:     r.Payload,
		Status:      job.Status(r.Status),
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		LastError:   r.LastError,
		RunAt:       r.RunAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Create inserts j.
func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	query := `
		INSERT INTO jobs (id, queue, operation, payload, status, attempts, max_attempts, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		j.ID, j.Queue, j.Operation, []byte(j.Payload), string(j.Status),
		j.Attempts, j.MaxAttempts, j.RunAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns the job with id.
func (r *JobRepository) Get(ctx context.Context, id string) (*job.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, `SELECT `+jobSelectList+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.toJob(), nil
}

// MarkRunning claims a queued or retrying job.
func (r *JobRepository) MarkRunning(ctx context.Context, id string) (*job.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'running',
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('queued', 'retrying')
		RETURNING ` + jobSelectList

	var row jobRow
	err := r.db.QueryRowxContext(ctx, query, id).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}
	return row.toJob(), nil
}

// MarkSucceeded records a successful run.
func (r *JobRepository) MarkSucceeded(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = 'succeeded',
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1`
	if err := execExpectOneRow(ctx, r.db, query, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark job succeeded: %w", err)
	}
	return nil
}

// MarkFailed records a failed run. status is retrying or failed.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, status job.Status, lastErr string, runAt time.Time) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    last_error = $3,
		    run_at = $4,
		    updated_at = NOW()
		WHERE id = $1`
	if err := execExpectOneRow(ctx, r.db, query, id, string(status), lastErr, runAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// ResetStale returns jobs left running longer than olderThan to queued. Jobs
// still queued or retrying more than olderThan after their run_at were never
// delivered and are returned as well; touching updated_at spaces out their
// redelivery.
func (r *JobRepository) ResetStale(ctx context.Context, olderThan time.Duration) ([]job.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'queued', updated_at = NOW()
		WHERE updated_at < NOW() - make_interval(secs => $1)
		  AND (status = 'running'
		       OR (status IN ('queued', 'retrying') AND run_at < NOW() - make_interval(secs => $1)))
		RETURNING ` + jobSelectList

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, olderThan.Seconds()); err != nil {
		return nil, fmt.Errorf("reset stale jobs: %w", err)
	}
	jobs := make([]job.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].toJob()
	}
	return jobs, nil
}

// List returns jobs newest first, restricted to status unless it is empty.
func (r *JobRepository) List(ctx context.Context, status job.Status, limit, offset int) ([]job.Job, error) {
	query := `SELECT ` + jobSelectList + ` FROM jobs
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, string(status), limit, offset); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]job.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].toJob()
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs per status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[job.Status]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	out := make(map[job.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err = rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		out[job.Status(status)] = n
	}
	return out, rows.Err()
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row was affected.
func execExpectOneRow(ctx context.Context, db *sqlx.DB, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
