package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/datacite/lupo-sub003/internal/domain"
)

// Error codes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeQueryTimeout       = "QUERY_TIMEOUT"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Response is the envelope of every query endpoint. A failing field is null
// in Data and described in Errors; sibling fields still resolve.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []FieldError   `json:"errors,omitempty"`
}

// FieldError locates one failure in the response.
type FieldError struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

func newFieldError(err error, path ...string) FieldError {
	code, _ := classify(err)
	return FieldError{Path: path, Message: err.Error(), Code: code}
}

// classify maps an error onto a code and HTTP status.
func classify(err error) (string, int) {
	var backendErr *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeInvalidInput, http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, domain.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeQueryTimeout, http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrBackendUnavailable), errors.As(err, &backendErr):
		return CodeBackendUnavailable, http.StatusServiceUnavailable
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}

// status is 200 unless every requested field failed, in which case the
// first error decides.
func (r *Response) status(errs []error) int {
	if len(errs) == 0 {
		return http.StatusOK
	}
	for _, v := range r.Data {
		if v != nil {
			return http.StatusOK
		}
	}
	_, status := classify(errs[0])
	return status
}
