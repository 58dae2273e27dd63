package extraction

import (
	"regexp"
	"strings"
)

// negatedInterest allows one softening word between the negation and "interested", so
// "not very interested" is read as a decline rather than as "very interested".
const negatedInterest = `(not|isn't|aren't|am not|i'm not|no longer)\s+(really\s+|very\s+|that\s+|super\s+|too\s+|all that\s+)?interested`

var (
	notInterestedRE  = regexp.MustCompile(`(?i)\b` + negatedInterest + `\b`)
	veryInterestedRE = regexp.MustCompile(`(?i)\b(very|really|super|extremely|definitely)\s+interested\b`)
	interestedRE     = regexp.MustCompile(`(?i)\binterested\b`)

	declineRE = regexp.MustCompile(`(?i)\b(no thanks|no thank you|not for me|don't call|do not call|stop calling|wrong number|` + negatedInterest + `)\b`)
	removalRE = regexp.MustCompile(`(?i)\b(remove me|take me off|off (of )?your list|unsubscribe|opt out)\b`)

	appointmentRE = regexp.MustCompile(`(?i)\b(schedule|scheduled|book(ed)?|appointment|set up a (time|call|meeting)|works for me|see you (on|then)|let's do)\b`)
	pricingRE     = regexp.MustCompile(`(?i)\b(pricing|price|quote|how much|proposal|estimate)\b`)
	callbackRE    = regexp.MustCompile(`(?i)\b(call me back|callback|call back|reach me (at|on)|give me a call)\b`)

	budgetAfterRE  = regexp.MustCompile(`(?i)\bbudget\b[^.$\d]{0,40}(\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:k|thousand|million|m)\b)?)`)
	budgetBeforeRE = regexp.MustCompile(`(?i)(\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:k|thousand|million|m)\b)?)[^.]{0,40}\bbudget\b`)

	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
)

// checked in order; the first phrase present wins
var timelinePhrases = []string{"next week", "next month", "this quarter", "asap", "immediately"}

// Heuristic extracts facts with deterministic text scans. It is the fallback when no model is
// configured or the model call fails.
func Heuristic(transcript string) Facts {
	facts := Facts{Source: SourceFallback}
	lower := strings.ToLower(transcript)

	switch {
	case notInterestedRE.MatchString(transcript):
		facts.InterestLevel = ptr(2)
	case veryInterestedRE.MatchString(transcript):
		facts.InterestLevel = ptr(9)
	case interestedRE.MatchString(transcript):
		facts.InterestLevel = ptr(7)
	}

	if m := budgetAfterRE.FindStringSubmatch(transcript); m != nil {
		facts.Budget = ptr(strings.TrimSpace(m[1]))
	} else if m := budgetBeforeRE.FindStringSubmatch(transcript); m != nil {
		facts.Budget = ptr(strings.TrimSpace(m[1]))
	}

	for _, phrase := range timelinePhrases {
		if strings.Contains(lower, phrase) {
			facts.Timeline = ptr(phrase)
			break
		}
	}

	if email := emailRE.FindString(transcript); email != "" {
		facts.Email = ptr(strings.ToLower(email))
	}
	if phone := phoneRE.FindString(transcript); phone != "" {
		facts.Phone = ptr(strings.TrimSpace(phone))
	}

	signals := DetectSignals(transcript)
	verdict := Qualifies(facts, signals)

	// decline first, then closing signals, so a later agreement outranks an earlier refusal
	if signals.negative() {
		if facts.InterestLevel == nil || *facts.InterestLevel > 3 {
			facts.InterestLevel = ptr(2)
		}
	}
	if signals.closing() {
		if facts.InterestLevel == nil || *facts.InterestLevel < 7 {
			facts.InterestLevel = ptr(7)
		}
	}
	facts.IsQualified = ptr(verdict)

	switch {
	case signals.closing():
		facts.Sentiment = ptr("positive")
	case signals.negative():
		facts.Sentiment = ptr("negative")
	default:
		facts.Sentiment = ptr("neutral")
	}
	facts.ConfidenceScore = ptr(0.4)
	return facts
}

// DetectSignals scans a transcript for qualification cues.
func DetectSignals(transcript string) Signals {
	return Signals{
		AppointmentScheduled: appointmentRE.MatchString(transcript),
		PricingRequested:     pricingRE.MatchString(transcript),
		CallbackRequested:    callbackRE.MatchString(transcript),
		ContactVolunteered:   emailRE.MatchString(transcript),
		Declined:             declineRE.MatchString(transcript),
		RemovalRequested:     removalRE.MatchString(transcript),
	}
}
