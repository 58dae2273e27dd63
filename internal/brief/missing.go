package brief

import (
	"strings"

	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
)

var vagueValues = []string{"not sure", "unsure", "unknown", "don't know", "dont know", "tbd", "n/a", "undecided", "no idea", "maybe"}

type checklistItem struct {
	field    string
	question string
	value    func(extraction.Facts, LeadSnapshot) string
}

var missingChecklist = []checklistItem{
	{"Email", "What's the best email address to send the details to?",
		func(f extraction.Facts, s LeadSnapshot) string { return pick(f.Email, s.Email) }},
	{"Budget", "Do you have a budget range in mind for this project?",
		func(f extraction.Facts, s LeadSnapshot) string { return pick(f.Budget, s.Budget) }},
	{"Company", "Which company are you with?",
		func(f extraction.Facts, s LeadSnapshot) string { return pick(f.Company, s.Company) }},
	{"Job Title", "What's your role there?",
		func(f extraction.Facts, s LeadSnapshot) string { return pick(f.JobTitle, s.JobTitle) }},
	{"Decision Process", "Who else is involved in making this decision?",
		func(f extraction.Facts, s LeadSnapshot) string { return pick(f.DecisionAuthority, s.DecisionAuthority) }},
	{"Timeline", "When are you hoping to get this done?",
		func(f extraction.Facts, s LeadSnapshot) string { return pick(f.Timeline, s.Timeline) }},
}

// MissingInfo lists checklist fields neither the call nor the existing lead answered, each with a
// follow-up question. Hedged answers such as "not sure" count as missing.
func MissingInfo(f extraction.Facts, snapshot LeadSnapshot) []MissingItem {
	var out []MissingItem
	for _, item := range missingChecklist {
		if isVague(item.value(f, snapshot)) {
			out = append(out, MissingItem{Field: item.field, Question: item.question})
		}
	}
	return out
}

func isVague(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	for _, marker := range vagueValues {
		if v == marker || strings.HasPrefix(v, marker+" ") {
			return true
		}
	}
	return false
}

// pick prefers the call's value and falls back to what the lead already holds.
func pick(v *string, existing string) string {
	if s := strings.TrimSpace(extraction.Str(v)); s != "" && !isVague(s) {
		return s
	}
	return existing
}
