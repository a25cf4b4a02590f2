// Package domain contains the registry's core records and error taxonomy.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a required single record is absent.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidInput marks malformed arguments that retrying cannot fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackendUnavailable marks a search or database backend that could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrQueryTimeout is returned when a search overruns its deadline.
	ErrQueryTimeout = errors.New("query timeout")
)

// BackendError is a failed call to the search or relational backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err for op. A nil err yields nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
