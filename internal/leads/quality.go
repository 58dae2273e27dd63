package leads

import (
	"strings"

	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
)

type weightedField struct {
	weight  int
	present func(extraction.Facts) bool
}

func hasText(s *string) bool { return strings.TrimSpace(extraction.Str(s)) != "" }

// identity and reachability count double
var qualityFields = []weightedField{
	{2, func(f extraction.Facts) bool { return hasText(f.Name) }},
	{2, func(f extraction.Facts) bool { return hasText(f.Phone) }},
	{2, func(f extraction.Facts) bool { return hasText(f.Email) }},
	{2, func(f extraction.Facts) bool { return hasText(f.City) }},
	{2, func(f extraction.Facts) bool { return hasText(f.State) }},
	{1, func(f extraction.Facts) bool { return hasText(f.Company) }},
	{1, func(f extraction.Facts) bool { return hasText(f.JobTitle) }},
	{1, func(f extraction.Facts) bool { return hasText(f.Budget) }},
	{1, func(f extraction.Facts) bool { return hasText(f.Timeline) }},
	{1, func(f extraction.Facts) bool { return hasText(f.Street) }},
	{1, func(f extraction.Facts) bool { return hasText(f.PostalCode) }},
	{1, func(f extraction.Facts) bool { return f.InterestLevel != nil }},
}

// DataQualityScore is the weighted share of known contact fields, 0-100. Every weight is
// positive, so learning a new field never lowers the score.
func DataQualityScore(f extraction.Facts) int {
	total, got := 0, 0
	for _, q := range qualityFields {
		total += q.weight
		if q.present(f) {
			got += q.weight
		}
	}
	return (got*100 + total/2) / total
}

// factsOf projects a stored lead back onto Facts for scoring.
func factsOf(l *Lead) extraction.Facts {
	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	f := extraction.Facts{
		Name:     opt(l.Name),
		Phone:    opt(l.Phone),
		Email:    opt(l.Email),
		Company:  opt(l.Company),
		JobTitle: opt(l.JobTitle),
		Budget:   opt(l.Budget),
		Timeline: opt(l.Timeline),
	}
	if l.InterestLevel > 0 {
		interest := l.InterestLevel
		f.InterestLevel = &interest
	}
	if addr, ok := l.CustomFields["address"].(map[string]any); ok {
		text := func(key string) *string {
			s, _ := addr[key].(string)
			return opt(s)
		}
		f.Street, f.City, f.State, f.PostalCode = text("street"), text("city"), text("state"), text("postalCode")
	}
	return f
}
