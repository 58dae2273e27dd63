package brief

import (
	"regexp"
	"strings"

	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
)

var (
	painRE        = regexp.MustCompile(`(?i)\b(problem|struggl\w*|issue|frustrat\w*|too high|too much|expensive|tired of|hate|worried)\b`)
	objectionRE   = regexp.MustCompile(`(?i)\b(too expensive|can't afford|not sure|think about it|not right now|already (have|use)|need to (talk|check) with|busy)\b`)
	buyingRE      = regexp.MustCompile(`(?i)\b(interested|how much|when can|sounds good|let's do|sign up|schedule|how soon|what's the next step)\b`)
	rapportRE     = regexp.MustCompile(`(?i)\b(my (wife|husband|partner|kids?|son|daughter|dog|family)|vacation|retir\w*|birthday|moving|new house|weekend)\b`)
	negotiationRE = regexp.MustCompile(`(?i)\b(discount|better (price|deal)|cheaper|other quotes?|compare|financing|payment plan|match)\b`)
)

// conversationInsights fills each list from the facts, scanning the prospect's turns when the
// facts are silent.
func conversationInsights(transcript string, f extraction.Facts) ConversationInsights {
	turns := prospectTurns(transcript)
	in := ConversationInsights{
		PainPoints:         orScan(f.PainPoints, turns, painRE),
		Objections:         orScan(f.Objections, turns, objectionRE),
		BuyingSignals:      orScan(f.BuyingSignals, turns, buyingRE),
		Questions:          f.Questions,
		CommunicationStyle: CommunicationStyle(transcript),
	}
	if len(in.Questions) == 0 {
		for _, t := range turns {
			if strings.HasSuffix(strings.TrimSpace(t), "?") {
				in.Questions = append(in.Questions, t)
			}
		}
	}
	return in
}

func salesIntelligence(transcript string, f extraction.Facts) SalesIntelligence {
	turns := prospectTurns(transcript)
	si := SalesIntelligence{
		RapportNotes:       scan(turns, rapportRE),
		NegotiationSignals: scan(turns, negotiationRE),
	}
	switch {
	case len(f.Competitors) > 0:
		si.CompetitivePosition = "Evaluating " + strings.Join(f.Competitors, ", ")
	case extraction.Str(f.CurrentSolution) != "":
		si.CompetitivePosition = "Currently using " + extraction.Str(f.CurrentSolution)
	default:
		si.CompetitivePosition = "No competitors mentioned"
	}
	return si
}

func orScan(known []string, turns []string, re *regexp.Regexp) []string {
	if len(known) > 0 {
		return known
	}
	return scan(turns, re)
}

func scan(turns []string, re *regexp.Regexp) []string {
	var out []string
	for _, t := range turns {
		if re.MatchString(t) {
			out = append(out, truncate(strings.TrimSpace(t), 160))
		}
	}
	return out
}
