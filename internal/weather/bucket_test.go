package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

func f(v float64) *float64 { return &v }

func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 0, 0, 0, kst)
}

func TestBucketDaily_MinMaxAndDaytimeIcon(t *testing.T) {
	samples := []sample{
		{at: at(17, 3), min: f(8.4), max: f(9.1), icon: "01n"},
		{at: at(17, 6), min: f(7.2), max: f(10.0), icon: "01n"},
		{at: at(17, 9), min: f(11.0), max: f(13.6), icon: "02d"},
		{at: at(17, 12), min: f(14.0), max: f(17.5), icon: "03d"},
		{at: at(17, 21), min: nil, max: nil, icon: "01n"},
	}
	got := bucketDaily(samples, kst)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-10-17", got[0].date)
	assert.Equal(t, 7.2, *got[0].min)
	assert.Equal(t, 17.5, *got[0].max)
	assert.Equal(t, "02d", got[0].icon, "first sample in [9,15] wins over the majority")
}

func TestBucketDaily_MajorityVoteTieBreak(t *testing.T) {
	samples := []sample{
		{at: at(18, 0), icon: "10n"},
		{at: at(18, 3), icon: "04n"},
		{at: at(18, 18), icon: "04n"},
		{at: at(18, 21), icon: "10n"},
		{at: at(19, 0), icon: "13n"},
		{at: at(19, 3), icon: "04n"},
		{at: at(19, 21), icon: "04n"},
	}
	got := bucketDaily(samples, kst)
	require.Len(t, got, 2)
	assert.Equal(t, "10n", got[0].icon, "tie goes to the icon seen first")
	assert.Equal(t, "04n", got[1].icon)
	assert.Nil(t, got[0].min)
	assert.Nil(t, got[0].max)
}

func TestBucketDaily_LocalDateBoundary(t *testing.T) {
	// 15:00 UTC is midnight in KST.
	samples := []sample{
		{at: time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC), max: f(1)},
		{at: time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC), max: f(2)},
	}
	got := bucketDaily(samples, kst)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-10-17", got[0].date)
	assert.Equal(t, "2026-10-18", got[1].date)

	got = bucketDaily(samples, time.UTC)
	require.Len(t, got, 1)
}

func TestBucketDaily_AtMostFiveAscending(t *testing.T) {
	var samples []sample
	// Out of order and spanning seven days.
	for _, day := range []int{23, 17, 21, 18, 22, 19, 20} {
		samples = append(samples, sample{at: at(day, 12), min: f(1), max: f(2), icon: "01d"})
	}
	got := bucketDaily(samples, kst)
	require.Len(t, got, MaxDailyEntries)
	for i, want := range []string{"2026-10-17", "2026-10-18", "2026-10-19", "2026-10-20", "2026-10-21"} {
		assert.Equal(t, want, got[i].date)
	}
}

func TestRound(t *testing.T) {
	assert.Nil(t, round(nil))
	assert.Equal(t, 3, *round(f(2.5)))
	assert.Equal(t, -3, *round(f(-2.5)))
	assert.Equal(t, 2, *round(f(2.49)))
}
