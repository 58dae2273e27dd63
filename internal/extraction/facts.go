package extraction

// Facts is the flat projection of everything extracted from one call transcript.
// Every field is optional; nil means the call did not mention it.
type Facts struct {
	// identity
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	AlternatePhone *string `json:"alternatePhone"`

	// address
	Street     *string `json:"street"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postalCode"`
	Country    *string `json:"country"`

	// employment
	Company     *string `json:"company"`
	JobTitle    *string `json:"jobTitle"`
	Department  *string `json:"department"`
	Industry    *string `json:"industry"`
	CompanySize *string `json:"companySize"`

	// lead tracking
	LeadSource          *string `json:"leadSource"`
	ReferralSource      *string `json:"referralSource"`
	PreviousInteraction *string `json:"previousInteraction"`

	// qualification
	InterestLevel     *int     `json:"interestLevel"`
	Budget            *string  `json:"budget"`
	Timeline          *string  `json:"timeline"`
	DecisionAuthority *string  `json:"decisionAuthority"`
	PainPoints        []string `json:"painPoints"`
	CurrentSolution   *string  `json:"currentSolution"`
	Competitors       []string `json:"competitors"`

	// conversation
	Questions     []string `json:"questions"`
	Objections    []string `json:"objections"`
	BuyingSignals []string `json:"buyingSignals"`
	NextSteps     []string `json:"nextSteps"`

	// appointment
	AppointmentDate *string `json:"appointmentDate"`
	AppointmentTime *string `json:"appointmentTime"`
	AppointmentType *string `json:"appointmentType"`

	// the party that placed the call, never the prospect's employer
	CallingCompany    *string `json:"callingCompany"`
	CallingOnBehalfOf *string `json:"callingOnBehalfOf"`

	// conversion
	Converted       *bool    `json:"converted"`
	ConversionValue *float64 `json:"conversionValue"`
	NextCallDate    *string  `json:"nextCallDate"`
	LastCallDate    *string  `json:"lastCallDate"`

	Sentiment       *string  `json:"sentiment"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	IsQualified     *bool    `json:"isQualifiedLead"`

	// Source is "model" or "fallback".
	Source string `json:"-"`
}

const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// Interest returns the interest level, or 0 when unknown.
func (f Facts) Interest() int {
	if f.InterestLevel == nil {
		return 0
	}
	return *f.InterestLevel
}

// Qualified returns the qualification verdict, treating unknown as false.
func (f Facts) Qualified() bool {
	return f.IsQualified != nil && *f.IsQualified
}

// HasAppointment reports whether any appointment detail was captured.
func (f Facts) HasAppointment() bool {
	return f.AppointmentDate != nil || f.AppointmentTime != nil
}

func clampInterest(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func ptr[T any](v T) *T {
	return &v
}

// Str dereferences an optional string.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
