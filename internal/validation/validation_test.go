package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLocation_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateLocation(tc.input, MaxLocationLength)
			if !errors.Is(err, ErrLocationEmpty) {
				t.Errorf("error = %v, want ErrLocationEmpty", err)
			}
		})
	}
}

func TestValidateLocation_TooLong(t *testing.T) {
	_, err := ValidateLocation(strings.Repeat("a", 101), MaxLocationLength)
	if !errors.Is(err, ErrLocationTooLong) {
		t.Errorf("error = %v, want ErrLocationTooLong", err)
	}
	// Length counts runes, not bytes.
	if _, err := ValidateLocation(strings.Repeat("대", 100), MaxLocationLength); err != nil {
		t.Errorf("100 Hangul runes: err = %v, want nil", err)
	}
}

func TestValidateLocation_InvalidChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"slash", "sea/ttle"},
		{"backslash", "sea\\ttle"},
		{"question", "sea?ttle"},
		{"hash", "sea#ttle"},
		{"control", "sea\x00ttle"},
		{"percent", "sea%ttle"},
		{"ampersand", "sea&ttle"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateLocation(tc.input, MaxLocationLength)
			if !errors.Is(err, ErrLocationInvalidChars) {
				t.Errorf("error = %v, want ErrLocationInvalidChars", err)
			}
		})
	}
}

func TestValidateLocation_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNorm string
	}{
		{"city and country", "Daejeon,KR", "Daejeon,KR"},
		{"hangul", "대전광역시", "대전광역시"},
		{"with space", "New York", "New York"},
		{"period", "St. Louis", "St. Louis"},
		{"trimmed", "  Seoul  ", "Seoul"},
		{"unicode", "Zürich", "Zürich"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateLocation(tc.input, MaxLocationLength)
			if err != nil {
				t.Fatalf("ValidateLocation() err = %v", err)
			}
			if got != tc.wantNorm {
				t.Errorf("normalized = %q, want %q", got, tc.wantNorm)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"node id", "DJB8001793", "DJB8001793", false},
		{"city code", " 25 ", "25", false},
		{"underscore and hyphen", "a_b-c", "a_b-c", false},
		{"empty", "", "", true},
		{"space inside", "DJB 800", "", true},
		{"query injection", "25&serviceKey=x", "", true},
		{"non ascii", "정류장", "", true},
		{"too long", strings.Repeat("9", 33), "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateIdentifier("node", tc.input, 32)
			if tc.wantErr {
				if !errors.Is(err, ErrIdentifierInvalid) {
					t.Fatalf("error = %v, want ErrIdentifierInvalid", err)
				}
				if !strings.HasPrefix(err.Error(), "node:") {
					t.Errorf("error = %q, want field prefix", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"1", 1, false},
		{" 20 ", 20, false},
		{"50", 50, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"51", 0, true},
		{"ten", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLimit(tc.input, 50)
			if tc.wantErr {
				if !errors.Is(err, ErrLimitInvalid) {
					t.Fatalf("error = %v, want ErrLimitInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}
