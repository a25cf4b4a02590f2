package database_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/internal/database"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/job"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

var jobColumns = []string{
	"id", "queue", "operation", "payload", "status", "attempts", "max_attempts",
	"last_error", "run_at", "created_at", "updated_at",
}

func TestJobRepository_Create(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := database.NewJobRepository(db)
	now := time.Now()

	j := &job.Job{
		ID: "0b7a7c4e-0000-4000-8000-000000000001", Queue: job.QueueDefault, Operation: "index",
		Payload: json.RawMessage(`{"target":"10.5061/x"}`), Status: job.StatusQueued,
		MaxAttempts: 5, RunAt: now, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(j.ID, j.Queue, j.Operation, []byte(j.Payload), "queued", 0, 5, now, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), j))
}

func TestJobRepository_MarkRunning(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := database.NewJobRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(jobColumns).
		AddRow("id-1", "lupo", "index", []byte(`{}`), "running", 2, 5, nil, now, now, now)
	mock.ExpectQuery("UPDATE jobs\\s+SET status = 'running'").
		WithArgs("id-1").
		WillReturnRows(rows)

	got, err := repo.MarkRunning(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.JSONEq(t, `{}`, string(got.Payload))
}

func TestJobRepository_MarkRunningTerminal(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery("UPDATE jobs").WithArgs("done").WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkRunning(context.Background(), "done")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepository_MarkFailed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "missing job", affected: 0, wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMock(t)
			repo := database.NewJobRepository(db)
			runAt := time.Now().Add(time.Minute)

			mock.ExpectExec("UPDATE jobs").
				WithArgs("id-1", "retrying", "timeout", runAt).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.MarkFailed(context.Background(), "id-1", job.StatusRetrying, "timeout", runAt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestJobRepository_ResetStale(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := database.NewJobRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(jobColumns).
		AddRow("a", "lupo_import", "import_batch", []byte(`{"from_id":1}`), "queued", 1, 5, nil, now, now, now).
		AddRow("b", "lupo", "index", []byte(`{}`), "queued", 3, 5, "boom", now, now, now)
	mock.ExpectQuery(`status = 'running'\s+OR \(status IN \('queued', 'retrying'\) AND run_at < NOW\(\) - make_interval`).
		WithArgs(float64(1800)).WillReturnRows(rows)

	jobs, err := repo.ResetStale(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "lupo_import", jobs[0].Queue)
	require.NotNil(t, jobs[1].LastError)
	assert.Equal(t, "boom", *jobs[1].LastError)
}

func TestJobRepository_List(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := database.NewJobRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(jobColumns).
		AddRow("b", "lupo", "index", []byte(`{}`), "failed", 5, 5, "boom", now, now, now)
	mock.ExpectQuery(`FROM jobs\s+WHERE \(\$1::text = '' OR status = \$1\)\s+ORDER BY created_at DESC, id\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 25, 50).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background(), job.StatusFailed, 25, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].ID)
	assert.Equal(t, job.StatusFailed, jobs[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_CountByStatus(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery("SELECT status, COUNT").WillReturnRows(
		sqlmock.NewRows([]string{"status", "count"}).AddRow("queued", 4).AddRow("failed", 1))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[job.Status]int64{job.StatusQueued: 4, job.StatusFailed: 1}, counts)
}
