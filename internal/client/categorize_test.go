package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory,
// including wrapped sentinels.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"missing configuration", ErrMissingConfiguration, ErrorCategoryMissingConfiguration},
		{"invalid credential", ErrInvalidCredential, ErrorCategoryInvalidCredential},
		{"wrapped invalid credential", fmt.Errorf("tasks: %w", ErrInvalidCredential), ErrorCategoryInvalidCredential},
		{"location not found", fmt.Errorf("geocode %q: %w", "nowhere", ErrLocationNotFound), ErrorCategoryLocationNotFound},
		{"parse", ParseError("transit", errors.New("XML syntax error")), ErrorCategoryParsing},
		{"unavailable", fmt.Errorf("weather: %w: HTTP 503", ErrUpstreamUnavailable), ErrorCategoryUpstreamUnavailable},
		{"deadline", context.DeadlineExceeded, ErrorCategoryUpstreamUnavailable},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), ErrorCategoryCanceled},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	err := ParseError("tasks", errors.New("unexpected token"))
	if !errors.Is(err, ErrUpstreamParse) {
		t.Errorf("ParseError() = %v, want wrapping ErrUpstreamParse", err)
	}
	if err := ParseError("tasks", nil); !errors.Is(err, ErrUpstreamParse) {
		t.Errorf("ParseError(nil) = %v, want wrapping ErrUpstreamParse", err)
	}
}
