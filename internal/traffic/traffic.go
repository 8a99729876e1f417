// Package traffic keeps a short sliding window of API outcomes. The health
// endpoint derives its degraded status from the error rate, and the rate-limit
// gauges read request and denial counts.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished API request.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Denied
)

// retention bounds memory; windows longer than this under-count.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(nil)

// Record records an outcome on the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// RequestCount returns all outcomes within the window on the process-wide tracker.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns rate-limit denials within the window on the process-wide tracker.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (failures, successes+failures) within the window on the process-wide tracker.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears the process-wide tracker. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker is a mutex-guarded, time-ordered list of outcome events.
type Tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	events []event
}

// NewTracker returns a Tracker. now defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Record appends an outcome at the current time and prunes expired events.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, outcome: o})
	t.pruneLocked(now)
}

// RequestCount returns the number of outcomes of any kind within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	return t.count(window, func(Outcome) bool { return true })
}

// DenialCount returns the number of Denied outcomes within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.count(window, func(o Outcome) bool { return o == Denied })
}

// ErrorRate returns failures and successes+failures within the window. Denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for _, e := range t.events {
		if e.at.Before(cutoff) {
			continue
		}
		switch e.outcome {
		case Failure:
			errors++
			total++
		case Success:
			total++
		}
	}
	return errors, total
}

// Reset drops all events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) count(window time.Duration, match func(Outcome) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.events {
		if !e.at.Before(cutoff) && match(e.outcome) {
			n++
		}
	}
	return n
}

// pruneLocked drops events older than retention. Events are appended in time order.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
