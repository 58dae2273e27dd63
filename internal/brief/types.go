package brief

import "time"

// Brief summarizes one call for sales follow-up. It is a pure function of the transcript,
// the extracted facts, the existing lead snapshot and the reference time.
type Brief struct {
	Executive       ExecutiveSummary     `json:"executiveSummary"`
	Contact         ContactDetails       `json:"contact"`
	Qualification   QualificationDetails `json:"qualification"`
	Insights        ConversationInsights `json:"insights"`
	Calendar        Calendar             `json:"calendar"`
	Actions         ActionItems          `json:"actionItems"`
	Intelligence    SalesIntelligence    `json:"salesIntelligence"`
	Recommendations Recommendations      `json:"recommendations"`
	Meta            Metadata             `json:"metadata"`
}

type ExecutiveSummary struct {
	Outcome       string `json:"outcome"`
	InterestLevel int    `json:"interestLevel"`
	ReadyToBuy    bool   `json:"readyToBuy"`
	NextAction    string `json:"nextAction"`
	Priority      string `json:"priority"`
}

type ContactDetails struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type QualificationDetails struct {
	IsQualified bool   `json:"isQualified"`
	Budget      string `json:"budget,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
	Authority   string `json:"authority,omitempty"`
	Need        string `json:"need,omitempty"`
}

type ConversationInsights struct {
	PainPoints         []string `json:"painPoints,omitempty"`
	Objections         []string `json:"objections,omitempty"`
	Questions          []string `json:"questions,omitempty"`
	BuyingSignals      []string `json:"buyingSignals,omitempty"`
	CommunicationStyle string   `json:"communicationStyle,omitempty"`
}

type Calendar struct {
	Appointments []Appointment `json:"appointments,omitempty"`
	FollowUps    []FollowUp    `json:"followUps,omitempty"`
}

// Appointment is a meeting agreed on the call. Date is midnight of the resolved day in the
// reference location; ScheduledAt is set only when an exact clock time was parsed.
type Appointment struct {
	Date        time.Time  `json:"date"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	DayText     string     `json:"dayText"`
	TimeText    string     `json:"timeText,omitempty"`
	Type        string     `json:"type,omitempty"`
	DurationMin int        `json:"durationMinutes"`
	Location    string     `json:"location,omitempty"`
	Confirmed   bool       `json:"confirmed"`
	Agenda      string     `json:"agenda,omitempty"`
}

type FollowUp struct {
	When   string     `json:"when"`
	DueAt  *time.Time `json:"dueAt,omitempty"`
	Reason string     `json:"reason"`
}

type ActionItems struct {
	MissingInfo []MissingItem `json:"missingInfo,omitempty"`
	Tasks       []Task        `json:"tasks,omitempty"`
	Documents   []string      `json:"documentsToSend,omitempty"`
	NextSteps   []string      `json:"nextSteps,omitempty"`
}

type MissingItem struct {
	Field    string `json:"field"`
	Question string `json:"suggestedQuestion"`
}

type Task struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Priority    string     `json:"priority"`
}

type SalesIntelligence struct {
	RapportNotes        []string `json:"rapportNotes,omitempty"`
	NegotiationSignals  []string `json:"negotiationSignals,omitempty"`
	CompetitivePosition string   `json:"competitivePosition,omitempty"`
}

type Recommendations struct {
	NextBestAction string   `json:"nextBestAction"`
	TalkingPoints  []string `json:"talkingPoints,omitempty"`
	WinProbability int      `json:"winProbability"`
	SuggestedOffer string   `json:"suggestedOffer,omitempty"`
}

type Metadata struct {
	Sentiment        string    `json:"sentiment"`
	CallQuality      int       `json:"callQuality"`
	DataCompleteness int       `json:"dataCompleteness"`
	GeneratedAt      time.Time `json:"generatedAt"`
	Source           string    `json:"source"`
}

const (
	SourceHeuristic = "heuristic"
	SourceModel     = "model"
)

// LeadSnapshot is the slice of an existing lead the generator consults.
type LeadSnapshot struct {
	Name              string
	Email             string
	Company           string
	JobTitle          string
	Budget            string
	Timeline          string
	DecisionAuthority string
	City              string
	PreviousCalls     int
	LastContactAt     *time.Time
}
