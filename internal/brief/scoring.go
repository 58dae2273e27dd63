package brief

import (
	"regexp"
	"strings"

	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
)

type weightedSignal struct {
	re     *regexp.Regexp
	weight int
}

var winSignals = []weightedSignal{
	{regexp.MustCompile(`(?i)\b(schedul\w*|book\w*|appointment|let's do it|sign me up)\b`), 15},
	{regexp.MustCompile(`(?i)\b(very|really|definitely|extremely) interested\b`), 10},
	{regexp.MustCompile(`(?i)\b(how much|pricing|price|quote|proposal|estimate)\b`), 10},
	{regexp.MustCompile(`(?i)\b(send (me )?(the |more )?(info|information|details)|email me)\b`), 5},
	{regexp.MustCompile(`(?i)\b(asap|right away|as soon as possible|this month)\b`), 5},
	{regexp.MustCompile(`(?i)\b(too expensive|can't afford|out of (my|our) budget)\b`), -15},
	{regexp.MustCompile(`(?i)\b(think about it|not right now|maybe later|not sure)\b`), -10},
	{regexp.MustCompile(`(?i)\b(already (have|use|work with)|happy with (my|our) current)\b`), -10},
	{regexp.MustCompile(`(?i)\b(not interested|no thanks|no thank you|remove me|do not call|don't call)\b`), -30},
}

// WinProbability starts at 50 and moves with each signal phrase present, bounded to [5, 95].
func WinProbability(transcript string, f extraction.Facts) int {
	score := 50
	for _, s := range winSignals {
		if s.re.MatchString(transcript) {
			score += s.weight
		}
	}
	if !isVague(extraction.Str(f.Budget)) {
		score += 5
	}
	if !isVague(extraction.Str(f.DecisionAuthority)) {
		score += 5
	}
	return clamp(score, 5, 95)
}

// DataCompleteness is the percentage of the ten core lead fields that are known.
func DataCompleteness(c ContactDetails, q QualificationDetails, hasAppointment bool) int {
	fields := []bool{
		c.Name != "", c.Email != "", c.Phone != "", c.Company != "", c.JobTitle != "",
		!isVague(q.Budget), !isVague(q.Timeline), !isVague(q.Authority), c.City != "",
		hasAppointment,
	}
	known := 0
	for _, ok := range fields {
		if ok {
			known++
		}
	}
	return known * 100 / len(fields)
}

// CommunicationStyle classifies the prospect from the length and shape of their turns.
func CommunicationStyle(transcript string) string {
	turns := prospectTurns(transcript)
	if len(turns) == 0 {
		return "unknown"
	}
	words, questions := 0, 0
	for _, t := range turns {
		words += len(strings.Fields(t))
		if strings.Contains(t, "?") {
			questions++
		}
	}
	avg := words / len(turns)
	switch {
	case questions*2 >= len(turns) && len(turns) > 1:
		return "inquisitive"
	case avg <= 6:
		return "concise"
	case avg >= 25:
		return "detailed"
	default:
		return "conversational"
	}
}

// CallQuality rates 1-10 how much usable conversation took place.
func CallQuality(transcript string, f extraction.Facts, hasAppointment bool) int {
	turns := prospectTurns(transcript)
	score := 5
	switch {
	case len(turns) >= 5:
		score += 2
	case len(turns) < 2:
		score -= 2
	}
	if len(transcript) > 500 {
		score++
	}
	if hasAppointment {
		score++
	}
	if extraction.Str(f.Email) != "" || extraction.Str(f.Phone) != "" {
		score++
	}
	if extraction.Str(f.Sentiment) == "negative" {
		score--
	}
	return clamp(score, 1, 10)
}

var prospectPrefix = regexp.MustCompile(`(?i)^\s*(user|customer|prospect|caller|human)\s*:\s*`)

// prospectTurns returns the prospect's lines. Untagged transcripts are treated as one turn per line.
func prospectTurns(transcript string) []string {
	var tagged, all []string
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		all = append(all, line)
		if prospectPrefix.MatchString(line) {
			tagged = append(tagged, prospectPrefix.ReplaceAllString(line, ""))
		}
	}
	if len(tagged) > 0 {
		return tagged
	}
	if speakerRE.MatchString(transcript) {
		return nil
	}
	return all
}

func priority(interest int, qualified, hasAppointment bool) string {
	switch {
	case hasAppointment || interest >= 8:
		return "high"
	case qualified || interest >= 5:
		return "medium"
	default:
		return "low"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
