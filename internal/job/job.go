// Package job is the background job layer: persisted job records, a Redis
// delivery queue, error classification and the runner that executes
// registered handlers with retry and discard semantics.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownOperation is returned for jobs naming no registered handler.
var ErrUnknownOperation = errors.New("unknown job operation")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusRetrying is a retryable failure waiting for its next attempt.
	StatusRetrying Status = "retrying"
	// StatusFailed is a fatal failure; the job will not run again.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further attempt will be made.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Queue names.
const (
	QueueDefault    = "lupo"
	QueueBackground = "lupo_background"
	QueueImport     = "lupo_import"
	QueueOther      = "lupo_import_other_doi"
	QueueTransfer   = "lupo_transfer"
	QueueEvents     = "events_other_doi_job"
)

const defaultMaxAttempts = 5

// Job is a persisted unit of asynchronous work.
type Job struct {
	ID          string          `db:"id"           json:"id"`
	Queue       string          `db:"queue"        json:"queue"`
	Operation   string          `db:"operation"    json:"operation"`
	Payload     json.RawMessage `db:"payload"      json:"payload"`
	Status      Status          `db:"status"       json:"status"`
	Attempts    int             `db:"attempts"     json:"attempts"`
	MaxAttempts int             `db:"max_attempts" json:"max_attempts"`
	LastError   *string         `db:"last_error"   json:"last_error,omitempty"`
	RunAt       time.Time       `db:"run_at"       json:"run_at"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

// CanRetry reports whether another attempt is allowed.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// Args is the payload shared by every operation: the target identifier(s),
// an optional ID range, an options bag and, for batch operations, inline
// JSON documents.
type Args struct {
	Target  string            `json:"target,omitempty"`
	Targets []string          `json:"targets,omitempty"`
	FromID  int64             `json:"from_id,omitempty"`
	UntilID int64             `json:"until_id,omitempty"`
	Options map[string]any    `json:"options,omitempty"`
	Lines   []json.RawMessage `json:"lines,omitempty"`
}

// Bool returns a boolean option, false when absent.
func (a Args) Bool(name string) bool {
	v, _ := a.Options[name].(bool)
	return v
}

// String returns a string option, "" when absent.
func (a Args) String(name string) string {
	v, _ := a.Options[name].(string)
	return v
}

// Refresh reports whether cached external data must be re-fetched.
func (a Args) Refresh() bool { return a.Bool("refresh") }

// DecodeArgs unmarshals the job payload. Failures are not retryable.
func (j *Job) DecodeArgs() (Args, error) {
	var args Args
	if len(j.Payload) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(j.Payload, &args); err != nil {
		return args, Discard(fmt.Errorf("decode %s payload: %w", j.Operation, err))
	}
	return args, nil
}
