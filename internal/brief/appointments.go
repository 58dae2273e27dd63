package brief

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	dayRE      = regexp.MustCompile(`(?i)\b(?:(?:next|this|on)\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|today|tonight)\b|\bnext\s+week\b`)
	exactTime  = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:a\.?\s?m\b\.?|p\.?\s?m\b\.?)|\b(?:[01]?\d|2[0-3]):[0-5]\d\b|\bnoon\b`)
	vagueTime  = regexp.MustCompile(`(?i)\b(?:after|before|by)\s+\d{1,2}(?::\d{2})?\s*(?:a\.?\s?m\b\.?|p\.?\s?m\b\.?)?|\b(?:in the\s+)?(?:morning|afternoon|evening|lunchtime)\b|\bend of (?:the )?day\b`)
	scheduleRE = regexp.MustCompile(`(?i)\b(schedul\w*|book\w*|appointment|meet\w*|call|visit|come out|demo|consultation|available|works for)\b`)
	confirmRE  = regexp.MustCompile(`(?i)\b(confirm\w*|works for me|that works|sounds good|perfect|see you|great|yes|sure|locked in)\b`)
	speakerRE  = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z .'-]{0,20}:\s*`)
)

var appointmentKinds = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)\bsite (visit|survey|assessment)\b|\bcome (out|by)\b|\bin person\b`), "site_visit"},
	{regexp.MustCompile(`(?i)\bdemo\b`), "demo"},
	{regexp.MustCompile(`(?i)\bconsult\w*\b`), "consultation"},
	{regexp.MustCompile(`(?i)\bmeet\w*\b`), "meeting"},
}

var (
	videoRE = regexp.MustCompile(`(?i)\b(zoom|video|teams|google meet)\b`)
	hourRE  = regexp.MustCompile(`(?i)\b(an|one|1)\s+hour\b`)
)

// ExtractAppointments scans a transcript line by line for agreed meeting times, pairing each day
// phrase with the nearest time expression on the same line. Day phrases are resolved against ref.
// Results are deduplicated by resolved day and time.
func ExtractAppointments(transcript string, ref time.Time) []Appointment {
	lines := strings.Split(transcript, "\n")
	seen := make(map[string]bool)
	var out []Appointment
	for i, raw := range lines {
		line := strings.TrimSpace(speakerRE.ReplaceAllString(raw, ""))
		if line == "" {
			continue
		}
		exact := exactTime.FindAllStringIndex(line, -1)
		vague := vagueTime.FindAllStringIndex(line, -1)
		for _, span := range dayRE.FindAllStringIndex(line, -1) {
			dayText := strings.ToLower(line[span[0]:span[1]])
			date, ok := ResolveDay(ref, dayText)
			if !ok {
				continue
			}
			appt := Appointment{Date: date, DayText: dayText, DurationMin: 30}

			if ts := nearest(exact, span); ts != nil && !within(ts, vague) {
				appt.TimeText = line[ts[0]:ts[1]]
				if h, m, ok := parseTimeText(appt.TimeText); ok {
					at := date.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
					appt.ScheduledAt = &at
				}
			} else if vs := nearest(vague, span); vs != nil {
				appt.TimeText = strings.ToLower(line[vs[0]:vs[1]])
			}

			if appt.TimeText == "" {
				if dayText == "today" || dayText == "tonight" || !scheduleRE.MatchString(line) {
					continue
				}
			}

			key := date.Format("2006-01-02") + "|" + strings.ToLower(appt.TimeText)
			if seen[key] {
				continue
			}
			seen[key] = true

			reply := line
			if i+1 < len(lines) {
				reply += " " + lines[i+1]
			}
			appt.Confirmed = confirmRE.MatchString(reply)
			appt.Type = appointmentKind(line)
			appt.Location = appointmentLocation(line, appt.Type)
			if hourRE.MatchString(line) {
				appt.DurationMin = 60
			}
			appt.Agenda = truncate(line, 200)
			out = append(out, appt)
		}
	}
	return out
}

func parseTimeText(s string) (int, int, bool) {
	if strings.EqualFold(strings.TrimSpace(s), "noon") {
		return 12, 0, true
	}
	return ParseClock(s)
}

func nearest(spans [][]int, target []int) []int {
	var best []int
	bestDist := -1
	for _, s := range spans {
		d := s[0] - target[1]
		if s[1] <= target[0] {
			d = target[0] - s[1]
		}
		if d < 0 {
			d = 0
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

func within(span []int, outer [][]int) bool {
	for _, o := range outer {
		if span[0] >= o[0] && span[1] <= o[1] {
			return true
		}
	}
	return false
}

func appointmentKind(line string) string {
	for _, k := range appointmentKinds {
		if k.re.MatchString(line) {
			return k.kind
		}
	}
	return "call"
}

func appointmentLocation(line, kind string) string {
	switch {
	case videoRE.MatchString(line):
		return "video"
	case kind == "site_visit":
		return "on_site"
	default:
		return "phone"
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
