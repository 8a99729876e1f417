package transit

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Rules are the display constants tuned against one transit authority's
// reporting. ArrivingNowSeconds is the largest seconds value reported as 0
// minutes; ZeroStopsMeansNext reports an absent or zero stops count as one
// stop away.
type Rules struct {
	ArrivingNowSeconds int
	ZeroStopsMeansNext bool
	StopSuffix         string
	ArrivingNowLabel   string
	MinuteLabelSuffix  string
}

// DefaultRules returns the rules used when config leaves them unset.
func DefaultRules() Rules {
	return Rules{
		ArrivingNowSeconds: 60,
		ZeroStopsMeansNext: true,
		StopSuffix:         "정거장 전",
		ArrivingNowLabel:   "곧 도착",
		MinuteLabelSuffix:  "분",
	}
}

// withDefaultLabels fills each empty label field from DefaultRules. Zero
// numeric and boolean values are kept as set.
func (r Rules) withDefaultLabels() Rules {
	def := DefaultRules()
	if r.StopSuffix == "" {
		r.StopSuffix = def.StopSuffix
	}
	if r.ArrivingNowLabel == "" {
		r.ArrivingNowLabel = def.ArrivingNowLabel
	}
	if r.MinuteLabelSuffix == "" {
		r.MinuteLabelSuffix = def.MinuteLabelSuffix
	}
	return r
}

// Item field names, lower-cased.
const (
	fieldRouteNo   = "routeno"
	fieldRouteID   = "routeid"
	fieldSeconds   = "arrtime"
	fieldMinutes   = "predicttime1"
	fieldMessage   = "arrmsg1"
	fieldMessageV2 = "arrmsg"
	fieldStops     = "arrprevstationcnt"
	fieldStopName  = "nodenm"
)

// etaRule is one rung of the ETA ladder. applies decides whether the rule owns
// the item; once it does, extract's result is final even when it fails.
type etaRule struct {
	name    string
	applies func(item) bool
	extract func(item) (int, bool)
}

// ladder returns the ETA rules in priority order: seconds field, minutes
// field, then free-text heuristics.
func (r Rules) ladder() []etaRule {
	return []etaRule{
		{
			name: "seconds",
			applies: func(it item) bool {
				_, ok := parseInt(it.get(fieldSeconds))
				return ok
			},
			extract: func(it item) (int, bool) {
				sec, _ := parseInt(it.get(fieldSeconds))
				return r.secondsToMinutes(sec), true
			},
		},
		{
			name: "minutes",
			applies: func(it item) bool {
				m, ok := parseInt(it.get(fieldMinutes))
				return ok && m >= 0
			},
			extract: func(it item) (int, bool) {
				return parseInt(it.get(fieldMinutes))
			},
		},
		{
			name: "message",
			applies: func(it item) bool {
				return it.message() != ""
			},
			extract: func(it item) (int, bool) {
				return r.minutesFromText(it.message())
			},
		},
	}
}

// eta runs the ladder and returns the first rule's result. ok is false when
// no rule applies or the owning rule could not extract a value.
func (r Rules) eta(ladder []etaRule, it item) (minutes int, rule string, ok bool) {
	for _, rl := range ladder {
		if !rl.applies(it) {
			continue
		}
		minutes, ok = rl.extract(it)
		return minutes, rl.name, ok
	}
	return 0, "", false
}

func (r Rules) secondsToMinutes(sec int) int {
	if sec <= r.ArrivingNowSeconds {
		return 0
	}
	return max(1, sec/60)
}

var (
	minutesPattern = regexp.MustCompile(`(\d+)\s*분`)
	secondsPattern = regexp.MustCompile(`(\d+)\s*초`)
)

// minutesFromText applies the free-text heuristics in order: "곧", "N분",
// "N초", then a bare integer.
func (r Rules) minutesFromText(text string) (int, bool) {
	text = strings.TrimSpace(norm.NFC.String(text))
	switch {
	case strings.Contains(text, "곧"):
		return 0, true
	case minutesPattern.MatchString(text):
		m, err := strconv.Atoi(minutesPattern.FindStringSubmatch(text)[1])
		return m, err == nil
	case secondsPattern.MatchString(text):
		sec, err := strconv.Atoi(secondsPattern.FindStringSubmatch(text)[1])
		if err != nil {
			return 0, false
		}
		return r.secondsToMinutes(sec), true
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 0 {
		return n, true
	}
	return 0, false
}

func (r Rules) stopsAway(raw string) string {
	raw = strings.TrimSpace(raw)
	n, numeric := parseInt(raw)
	switch {
	case r.ZeroStopsMeansNext && (raw == "" || (numeric && n == 0)):
		return fmt.Sprintf("1%s", r.StopSuffix)
	case numeric:
		return fmt.Sprintf("%d%s", n, r.StopSuffix)
	}
	return raw
}

func (r Rules) label(minutes int) string {
	if minutes == 0 {
		return r.ArrivingNowLabel
	}
	return fmt.Sprintf("%d%s", minutes, r.MinuteLabelSuffix)
}

// parseInt accepts "125" and "125.0"; upstream is inconsistent about both.
// Floats outside the int32 range are clamped to it.
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(max(min(f, math.MaxInt32), math.MinInt32)), true
}
