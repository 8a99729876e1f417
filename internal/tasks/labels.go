package tasks

import (
	"fmt"
	"time"
)

// NoDueLabel is shown for tasks without a due date.
const NoDueLabel = "—"

var weekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// label renders due relative to now. Calendar-day deltas are computed in loc;
// all-day dates are compared as written.
func label(due *Due, now time.Time, loc *time.Location) string {
	if due == nil {
		return NoDueLabel
	}
	local := due.Instant.In(loc)
	day := civilDay(local)
	if due.AllDay {
		if d, err := time.Parse(time.DateOnly, due.Date); err == nil {
			day = d
		}
	}

	var prefix string
	switch delta := daysBetween(civilDay(now.In(loc)), day); {
	case delta == 0:
		prefix = "오늘"
	case delta == 1:
		prefix = "내일"
	case delta >= -1 && delta <= 6:
		prefix = fmt.Sprintf("%d/%d(%s)", day.Month(), day.Day(), weekdays[day.Weekday()])
	default:
		prefix = day.Format(time.DateOnly)
	}
	if due.AllDay {
		return prefix
	}
	return prefix + " " + local.Format("15:04")
}

// overdue reports whether due is strictly in the past: timed tasks by
// instant, all-day tasks by date.
func overdue(due *Due, now time.Time, loc *time.Location) bool {
	if due == nil {
		return false
	}
	if !due.AllDay {
		return due.Instant.Before(now)
	}
	day, err := time.Parse(time.DateOnly, due.Date)
	if err != nil {
		day = civilDay(due.Instant.In(loc))
	}
	return daysBetween(civilDay(now.In(loc)), day) < 0
}

// civilDay returns t's calendar date as midnight UTC.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
