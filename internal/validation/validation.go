// Package validation checks query parameters before they reach a normalizer.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
	ErrLocationEmpty = errors.New("location is required")
	// ErrLocationTooLong is returned when location length exceeds the maximum.
	ErrLocationTooLong = errors.New("location too long")
	// ErrLocationInvalidChars is returned when location contains disallowed characters.
	ErrLocationInvalidChars = errors.New("location contains invalid characters")

	ErrIdentifierInvalid = errors.New("invalid identifier")
	ErrLimitInvalid      = errors.New("invalid limit")
)

// MaxLocationLength bounds a geocoding query in runes.
const MaxLocationLength = 100

// ValidateLocation trims the input, enforces maxLen in runes and restricts it
// to letters (any script), digits, space, comma, period, apostrophe and hyphen.
// The result is passed to geocoding as-is.
func ValidateLocation(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrLocationEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateIdentifier checks an upstream identifier such as a city code, stop
// node id or project id: 1..maxLen ASCII letters, digits, '_' or '-'.
// The error names field.
func ValidateIdentifier(field, input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%s: %w: empty", field, ErrIdentifierInvalid)
	}
	if maxLen > 0 && len(s) > maxLen {
		return "", fmt.Errorf("%s: %w: longer than %d", field, ErrIdentifierInvalid, maxLen)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return "", fmt.Errorf("%s: %w: unexpected character %q", field, ErrIdentifierInvalid, c)
		}
	}
	return s, nil
}

// ParseLimit parses an optional result limit. Empty input returns 0, which
// callers treat as "use the default".
func ParseLimit(input string, max int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || (max > 0 && n > max) {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrLimitInvalid, max)
	}
	return n, nil
}
