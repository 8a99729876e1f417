package client

import (
	"context"
	"errors"
)

// ErrorCategory is a stable label for error classification in metrics, logs
// and HTTP error bodies.
type ErrorCategory string

const (
	ErrorCategoryMissingConfiguration ErrorCategory = "missing_configuration"
	ErrorCategoryInvalidCredential    ErrorCategory = "invalid_credential"
	ErrorCategoryLocationNotFound     ErrorCategory = "location_not_found"
	ErrorCategoryUpstreamUnavailable  ErrorCategory = "upstream_unavailable"
	ErrorCategoryParsing              ErrorCategory = "parsing"
	ErrorCategoryCanceled             ErrorCategory = "canceled"
	ErrorCategoryUnknown              ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingConfiguration):
		return ErrorCategoryMissingConfiguration
	case errors.Is(err, ErrInvalidCredential):
		return ErrorCategoryInvalidCredential
	case errors.Is(err, ErrLocationNotFound):
		return ErrorCategoryLocationNotFound
	case errors.Is(err, ErrUpstreamParse):
		return ErrorCategoryParsing
	case errors.Is(err, ErrUpstreamUnavailable):
		return ErrorCategoryUpstreamUnavailable
	case errors.Is(err, context.Canceled):
		return ErrorCategoryCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryUpstreamUnavailable
	}
	return ErrorCategoryUnknown
}
