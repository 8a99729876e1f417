package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Task is the cached, clock-independent form of an upstream task. Labels and
// the overdue flag are derived from it on every call.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Due   *Due   `json:"due,omitempty"`
}

// Due is a resolved due date. For all-day tasks Instant is the start of Date
// in the task's zone and Date is the calendar date as written.
type Due struct {
	Instant time.Time `json:"instant"`
	AllDay  bool      `json:"allDay"`
	Date    string    `json:"date,omitempty"`
}

const showTaskURL = "https://todoist.com/showTask?id="

// floatingLayouts are ISO-8601 datetimes without an offset.
var floatingLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// taskArray returns the task list from either a bare JSON array or a
// {"results": [...]} page.
func taskArray(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(body)
	switch {
	case root.IsArray():
		return root.Array(), nil
	case root.IsObject() && root.Get("results").IsArray():
		return root.Get("results").Array(), nil
	}
	return nil, fmt.Errorf("unexpected body type %s", root.Type)
}

// parseTask converts one element. ok is false for tasks without a title.
// zoneFor resolves a per-task timezone name, returning nil when unknown.
func parseTask(r gjson.Result, fallback *time.Location, zoneFor func(string) *time.Location) (Task, bool) {
	title := strings.TrimSpace(r.Get("content").String())
	if title == "" {
		return Task{}, false
	}
	t := Task{
		ID:    r.Get("id").String(),
		Title: title,
		URL:   r.Get("url").String(),
	}
	if t.URL == "" && t.ID != "" {
		t.URL = showTaskURL + t.ID
	}

	due := r.Get("due")
	if !due.IsObject() {
		return t, true
	}
	zone := fallback
	override := false
	if name := due.Get("timezone").String(); name != "" {
		if loc := zoneFor(name); loc != nil {
			zone, override = loc, true
		}
	}
	if d, ok := resolveDue(due.Get("datetime").String(), due.Get("date").String(), zone, override); ok {
		t.Due = &d
	}
	return t, true
}

// resolveDue tries the timed field, then the date field. The date field may
// itself carry a datetime, which is then treated as timed.
func resolveDue(datetime, date string, zone *time.Location, override bool) (Due, bool) {
	if instant, ok := parseDatetime(datetime, zone, override); ok {
		return Due{Instant: instant}, true
	}
	if strings.Contains(date, "T") {
		if instant, ok := parseDatetime(date, zone, override); ok {
			return Due{Instant: instant}, true
		}
		return Due{}, false
	}
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), zone)
	if err != nil {
		return Due{}, false
	}
	return Due{Instant: day, AllDay: true, Date: day.Format(time.DateOnly)}, true
}

// parseDatetime parses an ISO-8601 datetime. "Z" and explicit offsets fix
// the instant, which is then viewed in the override zone when one is set.
// A floating time is read as wall-clock time in zone.
func parseDatetime(s string, zone *time.Location, override bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		if override {
			t = t.In(zone)
		}
		return t, true
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, s, zone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
