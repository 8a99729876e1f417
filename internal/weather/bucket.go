package weather

import (
	"math"
	"slices"
	"time"

	"github.com/tidwall/gjson"
)

// MaxDailyEntries bounds WeatherSnapshot.Daily.
const MaxDailyEntries = 5

// sample is one 3-hourly forecast point.
type sample struct {
	at   time.Time
	min  *float64
	max  *float64
	icon string
}

// dayBucket summarizes the samples of one local calendar date.
type dayBucket struct {
	date string
	min  *float64
	max  *float64
	icon string
}

// bucketDaily groups samples by calendar date in loc and returns at most
// MaxDailyEntries buckets in ascending date order. min and max are taken
// across all samples of the date. The icon is the first sample whose local
// hour is in [9,15]; otherwise the most frequent icon, ties going to the one
// seen first.
func bucketDaily(samples []sample, loc *time.Location) []dayBucket {
	type group struct {
		bucket  dayBucket
		daytime string
		counts  map[string]int
		order   []string
	}
	groups := make(map[string]*group)
	var dates []string

	for _, s := range samples {
		local := s.at.In(loc)
		date := local.Format(time.DateOnly)
		g, ok := groups[date]
		if !ok {
			g = &group{bucket: dayBucket{date: date}, counts: make(map[string]int)}
			groups[date] = g
			dates = append(dates, date)
		}
		g.bucket.min = minPtr(g.bucket.min, s.min)
		g.bucket.max = maxPtr(g.bucket.max, s.max)
		if s.icon == "" {
			continue
		}
		if g.daytime == "" && local.Hour() >= 9 && local.Hour() <= 15 {
			g.daytime = s.icon
		}
		if g.counts[s.icon] == 0 {
			g.order = append(g.order, s.icon)
		}
		g.counts[s.icon]++
	}

	// DateOnly strings sort chronologically.
	slices.Sort(dates)
	if len(dates) > MaxDailyEntries {
		dates = dates[:MaxDailyEntries]
	}

	out := make([]dayBucket, 0, len(dates))
	for _, date := range dates {
		g := groups[date]
		g.bucket.icon = g.daytime
		if g.bucket.icon == "" {
			best := 0
			for _, icon := range g.order {
				if g.counts[icon] > best {
					best = g.counts[icon]
					g.bucket.icon = icon
				}
			}
		}
		out = append(out, g.bucket)
	}
	return out
}

func minPtr(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v < *cur {
		return v
	}
	return cur
}

func maxPtr(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v > *cur {
		return v
	}
	return cur
}

// number returns r as a float when it is a JSON number, else nil.
func number(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	f := r.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// round rounds half away from zero. nil stays nil.
func round(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
