package brief

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ResolveWeekday returns midnight of the next occurrence of the named weekday strictly after
// ref's calendar day, in ref's location. "Friday" said on a Friday means a week later.
func ResolveWeekday(ref time.Time, name string) (time.Time, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return time.Time{}, false
	}
	day := startOfDay(ref)
	delta := (int(wd) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return day.AddDate(0, 0, delta), true
}

// ResolveDay resolves a spoken day reference: today, tomorrow, a weekday name, "next <weekday>",
// "this <weekday>" or "next week" (Monday of the following week).
func ResolveDay(ref time.Time, phrase string) (time.Time, bool) {
	p := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	switch p {
	case "today", "tonight":
		return startOfDay(ref), true
	case "tomorrow":
		return startOfDay(ref).AddDate(0, 0, 1), true
	case "next week":
		return ResolveWeekday(ref, "monday")
	}
	p = strings.TrimPrefix(p, "next ")
	p = strings.TrimPrefix(p, "this ")
	p = strings.TrimPrefix(p, "on ")
	return ResolveWeekday(ref, p)
}

// NextBusinessDay returns 09:00 on the first weekday after ref.
func NextBusinessDay(ref time.Time) time.Time {
	day := startOfDay(ref).AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(9 * time.Hour)
}

var clockRE = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(a\.?\s?m\.?|p\.?\s?m\.?)?$`)

// ParseClock converts "6 PM", "6:30pm" or "18:00" to hour and minute.
func ParseClock(s string) (hour, minute int, ok bool) {
	m := clockRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := strings.ToLower(strings.NewReplacer(".", "", " ", "").Replace(m[3]))
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "":
		if m[2] == "" {
			// a bare number is not a clock time
			return 0, 0, false
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
