package brief

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-12 is a Monday.
var monday = time.Date(2026, 10, 12, 10, 30, 0, 0, time.UTC)

func TestResolveWeekdayFromMonday(t *testing.T) {
	got, ok := ResolveWeekday(monday, "Friday")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), got)
}

func TestResolveWeekdaySameDayMeansNextWeek(t *testing.T) {
	friday := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	got, ok := ResolveWeekday(friday, "friday")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC), got)
}

func TestResolveWeekdayUnknown(t *testing.T) {
	_, ok := ResolveWeekday(monday, "someday")
	assert.False(t, ok)
}

func TestResolveDay(t *testing.T) {
	cases := map[string]time.Time{
		"today":        time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		"tomorrow":     time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC),
		"next week":    time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		"next Tuesday": time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC),
		"on  monday":   time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		"Sun":          time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
	}
	for phrase, want := range cases {
		got, ok := ResolveDay(monday, phrase)
		if !ok {
			t.Fatalf("ResolveDay(%q) not resolved", phrase)
		}
		if !got.Equal(want) {
			t.Fatalf("ResolveDay(%q) = %s, want %s", phrase, got, want)
		}
	}
}

func TestNextBusinessDaySkipsWeekend(t *testing.T) {
	friday := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), NextBusinessDay(friday))
	assert.Equal(t, time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC), NextBusinessDay(monday))
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"6 PM", 18, 0, true},
		{"6:30pm", 18, 30, true},
		{"6 p.m.", 18, 0, true},
		{"12 am", 0, 0, true},
		{"12pm", 12, 0, true},
		{"18:00", 18, 0, true},
		{"6", 0, 0, false},
		{"25:00", 0, 0, false},
		{"evening", 0, 0, false},
	}
	for _, tc := range cases {
		h, m, ok := ParseClock(tc.in)
		if ok != tc.ok || h != tc.hour || m != tc.minute {
			t.Fatalf("ParseClock(%q) = %d:%d %v, want %d:%d %v", tc.in, h, m, ok, tc.hour, tc.minute, tc.ok)
		}
	}
}
