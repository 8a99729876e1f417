package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var kst = time.FixedZone("KST", 9*60*60)

// now is Saturday 2026-10-17 09:00 KST.
var now = time.Date(2026, 10, 17, 9, 0, 0, 0, kst)

func timed(y int, m time.Month, d, hh, mm int) *Due {
	return &Due{Instant: time.Date(y, m, d, hh, mm, 0, 0, kst)}
}

func allDay(date string) *Due {
	day, _ := time.ParseInLocation(time.DateOnly, date, kst)
	return &Due{Instant: day, AllDay: true, Date: date}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		due  *Due
		want string
	}{
		{"undated", nil, "—"},
		{"today timed", timed(2026, 10, 17, 14, 30), "오늘 14:30"},
		{"today all-day", allDay("2026-10-17"), "오늘"},
		{"tomorrow timed", timed(2026, 10, 18, 8, 5), "내일 08:05"},
		{"tomorrow all-day", allDay("2026-10-18"), "내일"},
		{"three days out", timed(2026, 10, 20, 17, 0), "10/20(화) 17:00"},
		{"six days out", allDay("2026-10-23"), "10/23(금)"},
		{"seven days out", allDay("2026-10-24"), "2026-10-24"},
		{"yesterday", allDay("2026-10-16"), "10/16(금)"},
		{"two days ago", timed(2026, 10, 15, 9, 0), "2026-10-15 09:00"},
		{"far future", timed(2026, 11, 2, 15, 4), "2026-11-02 15:04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, label(tt.due, now, kst))
		})
	}
}

// TestLabel_AllDayUsesWrittenDate verifies an all-day date in another zone is
// labelled by the date as written, not shifted into the target zone.
func TestLabel_AllDayUsesWrittenDate(t *testing.T) {
	la := time.FixedZone("PDT", -7*60*60)
	day, _ := time.ParseInLocation(time.DateOnly, "2026-10-18", la)
	due := &Due{Instant: day, AllDay: true, Date: "2026-10-18"}
	assert.Equal(t, "내일", label(due, now, kst))
}

func TestOverdue(t *testing.T) {
	tests := []struct {
		name string
		due  *Due
		want bool
	}{
		{"undated", nil, false},
		{"earlier today timed", timed(2026, 10, 17, 8, 59), true},
		{"later today timed", timed(2026, 10, 17, 9, 1), false},
		{"exactly now", timed(2026, 10, 17, 9, 0), false},
		{"today all-day", allDay("2026-10-17"), false},
		{"yesterday all-day", allDay("2026-10-16"), true},
		{"one day overdue timed", timed(2026, 10, 16, 9, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overdue(tt.due, now, kst))
		})
	}
}
