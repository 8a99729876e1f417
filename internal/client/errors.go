// Package client holds the upstream transport shared by the normalizers and
// the error taxonomy every pipeline reports through.
package client

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfiguration means a credential or identifier was empty and
	// no upstream call was made.
	ErrMissingConfiguration = errors.New("missing configuration")

	// ErrUpstreamUnavailable covers transport errors, timeouts, non-2xx
	// statuses and an open circuit breaker. Callers must not distinguish a
	// timeout from a connection failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamParse means the response body was malformed or did not have
	// the expected shape.
	ErrUpstreamParse = errors.New("upstream parse error")

	// ErrInvalidCredential means the upstream explicitly rejected the
	// credential (HTTP 401).
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrLocationNotFound means geocoding returned no results.
	ErrLocationNotFound = errors.New("location not found")
)

// ParseError wraps a decoding failure for source as ErrUpstreamParse.
func ParseError(source string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", source, ErrUpstreamParse)
	}
	return fmt.Errorf("%s: %w: %v", source, ErrUpstreamParse, err)
}
