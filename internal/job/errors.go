package job

import (
	"encoding/json"
	"errors"

	"github.com/datacite/lupo-sub003/internal/domain"
)

// Outcome is the classification of a handler error.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetry     Outcome = "retry"
	OutcomeDiscard   Outcome = "discard"
	OutcomeExhausted Outcome = "exhausted"
)

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type discardError struct{ err error }

func (e *discardError) Error() string { return e.err.Error() }
func (e *discardError) Unwrap() error { return e.err }

// Retryable marks err as a transient failure worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Discard marks err as a data failure: it is logged and the job dropped.
func Discard(err error) error {
	if err == nil {
		return nil
	}
	return &discardError{err: err}
}

// Classify maps a handler error onto an outcome. Explicit marks win;
// invalid input, missing records and undecodable payloads are discarded;
// anything else is treated as an infrastructure failure and retried.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var discard *discardError
	if errors.As(err, &discard) {
		return OutcomeDiscard
	}
	var retry *retryableError
	if errors.As(err, &retry) {
		return OutcomeRetry
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, ErrUnknownOperation),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return OutcomeDiscard
	}
	return OutcomeRetry
}
