package extraction

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// fieldRule reads one logical field. Paths are tried in order and the first value the
// transform accepts wins. Path segments match keys case-insensitively, ignoring "_", "-"
// and spaces, so "prospect_information.full_name" also matches "ProspectInformation.fullName".
type fieldRule struct {
	paths  []string
	assign func(f *Facts, v any) bool
}

func text(set func(*Facts, string)) func(*Facts, any) bool {
	return func(f *Facts, v any) bool {
		s, ok := asText(v)
		if !ok {
			return false
		}
		set(f, s)
		return true
	}
}

func list(set func(*Facts, []string)) func(*Facts, any) bool {
	return func(f *Facts, v any) bool {
		items := asList(v)
		if len(items) == 0 {
			return false
		}
		set(f, items)
		return true
	}
}

// groups the model uses for the prospect's own details
var prospectGroups = []string{"prospect", "prospectInformation", "prospectInfo", "prospectDetails", "contact", "contactInformation", "identity", "lead", "leadInformation"}

func withGroups(groups []string, keys ...string) []string {
	paths := make([]string, 0, len(groups)*len(keys)+len(keys))
	for _, g := range groups {
		for _, k := range keys {
			paths = append(paths, g+"."+k)
		}
	}
	return append(paths, keys...)
}

func nested(groups []string, keys ...string) []string {
	paths := make([]string, 0, len(groups)*len(keys))
	for _, g := range groups {
		for _, k := range keys {
			paths = append(paths, g+"."+k)
		}
	}
	return paths
}

var (
	addressGroups       = []string{"address", "prospect.address", "prospectInformation.address", "contact.address", "location", "addressInformation"}
	employmentGroups    = []string{"employment", "employmentInformation", "companyInformation", "company", "prospectInformation", "prospect", "business"}
	trackingGroups      = []string{"leadTracking", "tracking", "leadSource"}
	qualificationGroups = []string{"qualification", "qualificationData", "leadQualification", "qualificationInformation"}
	conversationGroups  = []string{"conversation", "conversationInsights", "conversationDetails", "insights"}
	appointmentGroups   = []string{"appointment", "appointmentDetails", "appointmentInformation", "meeting"}
	callingGroups       = []string{"callingCompany", "callingCompanyInformation", "callerInformation"}
	conversionGroups    = []string{"conversion", "conversionData", "followUp"}
)

var fieldRules = []fieldRule{
	{withGroups(prospectGroups, "name", "fullName", "prospectName", "contactName"), text(func(f *Facts, s string) { f.Name = &s })},
	{withGroups(prospectGroups, "email", "emailAddress", "prospectEmail"), text(func(f *Facts, s string) { f.Email = ptr(strings.ToLower(s)) })},
	{withGroups(prospectGroups, "phone", "phoneNumber", "prospectPhone", "mobile"), text(func(f *Facts, s string) { f.Phone = &s })},
	{withGroups(prospectGroups, "alternatePhone", "alternativePhone", "secondaryPhone"), text(func(f *Facts, s string) { f.AlternatePhone = &s })},

	{append(nested(addressGroups, "street", "streetAddress", "address1", "line1"), "streetAddress", "street"), text(func(f *Facts, s string) { f.Street = &s })},
	{append(nested(addressGroups, "city", "town"), "city"), text(func(f *Facts, s string) { f.City = &s })},
	{append(nested(addressGroups, "state", "region", "province"), "state"), text(func(f *Facts, s string) { f.State = &s })},
	{append(nested(addressGroups, "postalCode", "postcode", "zip", "zipCode"), "postalCode", "zipCode", "zip"), text(func(f *Facts, s string) { f.PostalCode = &s })},
	{append(nested(addressGroups, "country"), "country"), text(func(f *Facts, s string) { f.Country = &s })},

	{append(nested(employmentGroups, "companyName", "company", "employer"), "company.name", "companyInformation.name", "business.name", "companyName", "company", "employer"), text(func(f *Facts, s string) { f.Company = &s })},
	{append(nested(employmentGroups, "jobTitle", "title", "position", "role"), "jobTitle", "title", "position"), text(func(f *Facts, s string) { f.JobTitle = &s })},
	{append(nested(employmentGroups, "department"), "department"), text(func(f *Facts, s string) { f.Department = &s })},
	{append(nested(employmentGroups, "industry"), "industry"), text(func(f *Facts, s string) { f.Industry = &s })},
	{append(nested(employmentGroups, "companySize", "size", "employeeCount", "employees"), "companySize", "employeeCount"), text(func(f *Facts, s string) { f.CompanySize = &s })},

	{append(nested(trackingGroups, "source", "leadSource"), "leadSource", "source"), text(func(f *Facts, s string) { f.LeadSource = &s })},
	{append(nested(trackingGroups, "referral", "referralSource", "referredBy"), "referralSource", "referredBy", "referral"), text(func(f *Facts, s string) { f.ReferralSource = &s })},
	{append(nested(trackingGroups, "previousInteraction", "priorInteraction"), "previousInteraction", "priorInteraction"), text(func(f *Facts, s string) { f.PreviousInteraction = &s })},

	{append(nested(qualificationGroups, "interestLevel", "interest", "interestScore"), "interestLevel", "interest", "interestScore"), func(f *Facts, v any) bool {
		n, ok := asNumber(v)
		if !ok {
			return false
		}
		f.InterestLevel = ptr(clampInterest(int(math.Round(n))))
		return true
	}},
	{append(nested(qualificationGroups, "budget", "budgetRange"), "budget", "budgetRange"), text(func(f *Facts, s string) { f.Budget = &s })},
	{append(nested(qualificationGroups, "timeline", "timeframe", "purchaseTimeline"), "timeline", "timeframe", "purchaseTimeline"), text(func(f *Facts, s string) { f.Timeline = &s })},
	{append(nested(qualificationGroups, "decisionAuthority", "decisionMaker", "authority", "decisionProcess"), "decisionAuthority", "decisionMaker", "decisionProcess"), text(func(f *Facts, s string) { f.DecisionAuthority = &s })},
	{append(nested(qualificationGroups, "painPoints", "needs", "need"), "painPoints", "needs"), list(func(f *Facts, l []string) { f.PainPoints = l })},
	{append(nested(qualificationGroups, "currentSolution", "currentProvider"), "currentSolution", "currentProvider"), text(func(f *Facts, s string) { f.CurrentSolution = &s })},
	{append(nested(qualificationGroups, "competitors", "competitorsMentioned"), "competitors", "competitorsMentioned"), list(func(f *Facts, l []string) { f.Competitors = l })},

	{append(nested(conversationGroups, "questions", "questionsAsked"), "questions", "questionsAsked"), list(func(f *Facts, l []string) { f.Questions = l })},
	{append(nested(conversationGroups, "objections"), "objections"), list(func(f *Facts, l []string) { f.Objections = l })},
	{append(nested(conversationGroups, "buyingSignals"), "buyingSignals"), list(func(f *Facts, l []string) { f.BuyingSignals = l })},
	{append(nested(conversationGroups, "nextSteps", "actionItems"), "nextSteps"), list(func(f *Facts, l []string) { f.NextSteps = l })},

	{append(nested(appointmentGroups, "date", "appointmentDate", "scheduledDate"), "appointmentDate", "scheduledDate"), text(func(f *Facts, s string) { f.AppointmentDate = &s })},
	{append(nested(appointmentGroups, "time", "appointmentTime", "scheduledTime"), "appointmentTime", "scheduledTime"), text(func(f *Facts, s string) { f.AppointmentTime = &s })},
	{append(nested(appointmentGroups, "type", "appointmentType", "meetingType"), "appointmentType", "meetingType"), text(func(f *Facts, s string) { f.AppointmentType = &s })},

	{append(nested(callingGroups, "name", "companyName", "company"), "callingCompanyName", "callerCompany", "callingCompany"), text(func(f *Facts, s string) { f.CallingCompany = &s })},
	{append(nested(callingGroups, "onBehalfOf", "representing", "clientName"), "callingOnBehalfOf", "onBehalfOf"), text(func(f *Facts, s string) { f.CallingOnBehalfOf = &s })},

	{append(nested(conversionGroups, "converted", "isConverted"), "converted", "isConverted"), func(f *Facts, v any) bool {
		b, ok := asBool(v)
		if ok {
			f.Converted = &b
		}
		return ok
	}},
	{append(nested(conversionGroups, "value", "conversionValue", "dealValue"), "conversionValue", "dealValue"), func(f *Facts, v any) bool {
		n, ok := asNumber(v)
		if ok {
			f.ConversionValue = &n
		}
		return ok
	}},
	{append(nested(conversionGroups, "nextCallDate", "followUpDate", "callbackDate"), "nextCallDate", "followUpDate", "callbackDate"), text(func(f *Facts, s string) { f.NextCallDate = &s })},
	{append(nested(conversionGroups, "lastCallDate"), "lastCallDate"), text(func(f *Facts, s string) { f.LastCallDate = &s })},

	{[]string{"sentiment", "overallSentiment", "analysis.sentiment", "conversation.sentiment"}, text(func(f *Facts, s string) { f.Sentiment = ptr(strings.ToLower(s)) })},
	{[]string{"confidenceScore", "confidence", "metadata.confidenceScore"}, func(f *Facts, v any) bool {
		n, ok := asNumber(v)
		if ok {
			f.ConfidenceScore = &n
		}
		return ok
	}},
	{[]string{"isQualifiedLead", "isQualified", "qualified", "qualification.isQualified", "qualification.isQualifiedLead", "qualification.qualified"}, func(f *Facts, v any) bool {
		b, ok := asBool(v)
		if ok {
			f.IsQualified = &b
		}
		return ok
	}},
}

// Coalesce maps a model's raw JSON object, nested or flat, onto Facts.
func Coalesce(raw map[string]any) Facts {
	var facts Facts
	for _, rule := range fieldRules {
		for _, path := range rule.paths {
			v := lookupFold(raw, path)
			if v == nil {
				continue
			}
			if rule.assign(&facts, v) {
				break
			}
		}
	}
	if facts.Name == nil {
		first, _ := asText(firstValue(raw, withGroups(prospectGroups, "firstName")))
		last, _ := asText(firstValue(raw, withGroups(prospectGroups, "lastName")))
		if full := strings.TrimSpace(first + " " + last); full != "" {
			facts.Name = &full
		}
	}
	return facts
}

func firstValue(raw map[string]any, paths []string) any {
	for _, p := range paths {
		if v := lookupFold(raw, p); v != nil {
			return v
		}
	}
	return nil
}

func foldKey(k string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(k))
}

func lookupFold(m map[string]any, path string) any {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		want := foldKey(part)
		var next any
		if v, ok := obj[part]; ok {
			next = v
		} else {
			for k, v := range obj {
				if foldKey(k) == want {
					next = v
					break
				}
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

var nullish = map[string]bool{"": true, "null": true, "none": true, "n/a": true, "na": true, "unknown": true, "not mentioned": true, "not provided": true, "not specified": true}

func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if nullish[strings.ToLower(s)] {
			return "", false
		}
		return s, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(t, "$")), 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "qualified":
			return true, true
		case "false", "no", "n", "unqualified", "not qualified":
			return false, true
		}
	}
	return false, false
}

func asList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := asText(item); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s, ok := asText(t); ok {
			return []string{s}
		}
	}
	return nil
}
