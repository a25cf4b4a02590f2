package job_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/job"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	var syntaxErr error = &json.SyntaxError{Offset: 1}

	tests := []struct {
		name string
		err  error
		want job.Outcome
	}{
		{"nil", nil, job.OutcomeSuccess},
		{"plain error retries", errors.New("connection refused"), job.OutcomeRetry},
		{"backend unavailable", domain.NewBackendError("index", domain.ErrBackendUnavailable), job.OutcomeRetry},
		{"query timeout", domain.NewBackendError("search", domain.ErrQueryTimeout), job.OutcomeRetry},
		{"invalid input", fmt.Errorf("bad doi: %w", domain.ErrInvalidInput), job.OutcomeDiscard},
		{"not found", domain.ErrNotFound, job.OutcomeDiscard},
		{"unknown operation", job.ErrUnknownOperation, job.OutcomeDiscard},
		{"json syntax", fmt.Errorf("decode: %w", syntaxErr), job.OutcomeDiscard},
		{"explicit discard", job.Discard(errors.New("bad row")), job.OutcomeDiscard},
		{"explicit retry wins over not found", job.Retryable(domain.ErrNotFound), job.OutcomeRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, job.Classify(tt.err))
		})
	}
}

func TestWrappersKeepNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, job.Retryable(nil))
	assert.NoError(t, job.Discard(nil))
}

func TestDecodeArgs(t *testing.T) {
	t.Parallel()

	j := &job.Job{Operation: "index", Payload: json.RawMessage(`{"target":"10.5061/abc","options":{"refresh":true,"mode":"fast"}}`)}
	args, err := j.DecodeArgs()
	assert.NoError(t, err)
	assert.Equal(t, "10.5061/abc", args.Target)
	assert.True(t, args.Refresh())
	assert.Equal(t, "fast", args.String("mode"))
	assert.False(t, args.Bool("missing"))

	bad := &job.Job{Operation: "index", Payload: json.RawMessage(`{"target":`)}
	_, err = bad.DecodeArgs()
	assert.Equal(t, job.OutcomeDiscard, job.Classify(err))
}
