package brief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
	"github.com/wolfman30/callcrm-ai-platform/internal/llm"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

const (
	DefaultInterestThreshold      = 5
	DefaultUltraInterestThreshold = 8

	defaultTimeout = 45 * time.Second
)

// Input is everything a brief is derived from. Now is the reference time for resolving
// relative dates.
type Input struct {
	Transcript string
	Metadata   map[string]any
	Facts      extraction.Facts
	Snapshot   LeadSnapshot
	Now        time.Time
}

// Generator builds call briefs. The heuristic brief is always produced; for high-interest calls
// with a model configured, the model's narrative sections are laid over it.
type Generator struct {
	client         llm.Client
	model          string
	timeout        time.Duration
	threshold      int
	ultraThreshold int
	loc            *time.Location
	logger         *logging.Logger
}

type Option func(*Generator)

func WithModel(model string) Option {
	return func(g *Generator) { g.model = strings.TrimSpace(model) }
}

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithThresholds sets the interest needed for any brief and for the model-backed brief.
func WithThresholds(brief, ultra int) Option {
	return func(g *Generator) {
		if brief > 0 {
			g.threshold = brief
		}
		if ultra > 0 {
			g.ultraThreshold = ultra
		}
	}
}

// WithLocation sets the timezone weekday phrases are resolved in.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func NewGenerator(client llm.Client, logger *logging.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	g := &Generator{
		client:         client,
		timeout:        defaultTimeout,
		threshold:      DefaultInterestThreshold,
		ultraThreshold: DefaultUltraInterestThreshold,
		loc:            time.UTC,
		logger:         logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ShouldGenerate reports whether a call warrants a brief: it qualified, or interest reached the
// brief threshold.
func (g *Generator) ShouldGenerate(f extraction.Facts) bool {
	return f.Qualified() || f.Interest() >= g.threshold
}

// Build never fails. A model error leaves the heuristic brief in place.
func (g *Generator) Build(ctx context.Context, in Input) Brief {
	b := g.heuristic(in)
	if g.client == nil || in.Facts.Interest() < g.ultraThreshold {
		return b
	}
	overlay, err := g.ultra(ctx, in)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			g.logger.Warn("detailed brief failed, keeping heuristic brief", "error", err)
		}
		return b
	}
	applyOverlay(&b, overlay)
	b.Meta.Source = SourceModel
	return b
}

func (g *Generator) heuristic(in Input) Brief {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	ref := now.In(g.loc)
	f := in.Facts
	signals := extraction.DetectSignals(in.Transcript)

	appts := ExtractAppointments(in.Transcript, ref)
	if len(appts) == 0 {
		if a, ok := appointmentFromFacts(f, ref); ok {
			appts = append(appts, a)
		}
	}
	hasAppt := len(appts) > 0
	interest := f.Interest()
	qualified := f.Qualified()

	contact := ContactDetails{
		Name:       pick(f.Name, in.Snapshot.Name),
		Email:      pick(f.Email, in.Snapshot.Email),
		Phone:      extraction.Str(f.Phone),
		Company:    pick(f.Company, in.Snapshot.Company),
		JobTitle:   pick(f.JobTitle, in.Snapshot.JobTitle),
		Street:     extraction.Str(f.Street),
		City:       pick(f.City, in.Snapshot.City),
		State:      extraction.Str(f.State),
		PostalCode: extraction.Str(f.PostalCode),
	}
	qual := QualificationDetails{
		IsQualified: qualified,
		Budget:      pick(f.Budget, in.Snapshot.Budget),
		Timeline:    pick(f.Timeline, in.Snapshot.Timeline),
		Authority:   pick(f.DecisionAuthority, in.Snapshot.DecisionAuthority),
	}
	if len(f.PainPoints) > 0 {
		qual.Need = f.PainPoints[0]
	} else {
		qual.Need = extraction.Str(f.CurrentSolution)
	}

	missing := MissingInfo(f, in.Snapshot)
	insights := conversationInsights(in.Transcript, f)
	intel := salesIntelligence(in.Transcript, f)
	win := WinProbability(in.Transcript, f)

	b := Brief{
		Executive: ExecutiveSummary{
			Outcome:       outcome(interest, hasAppt, signals),
			InterestLevel: interest,
			ReadyToBuy:    hasAppt || (interest >= 8 && signals.PricingRequested),
			Priority:      priority(interest, qualified, hasAppt),
		},
		Contact:       contact,
		Qualification: qual,
		Insights:      insights,
		Calendar:      Calendar{Appointments: appts},
		Actions:       ActionItems{MissingInfo: missing, NextSteps: f.NextSteps},
		Intelligence:  intel,
		Recommendations: Recommendations{
			WinProbability: win,
		},
		Meta: Metadata{
			Sentiment:        sentimentOf(f),
			CallQuality:      CallQuality(in.Transcript, f, hasAppt),
			DataCompleteness: DataCompleteness(contact, qual, hasAppt),
			GeneratedAt:      now.UTC(),
			Source:           SourceHeuristic,
		},
	}

	followDue := NextBusinessDay(ref)
	if !hasAppt && (qualified || interest >= g.threshold) {
		b.Calendar.FollowUps = append(b.Calendar.FollowUps, FollowUp{
			When: "next business day", DueAt: &followDue, Reason: "No meeting booked on the call",
		})
	}
	b.Actions.Tasks, b.Actions.Documents = tasksFor(b, signals, ref)
	b.Recommendations.NextBestAction = nextBestAction(b, signals)
	b.Executive.NextAction = b.Recommendations.NextBestAction
	b.Recommendations.TalkingPoints = talkingPoints(b)
	b.Recommendations.SuggestedOffer = suggestedOffer(b)
	return b
}

func appointmentFromFacts(f extraction.Facts, ref time.Time) (Appointment, bool) {
	dayText := strings.TrimSpace(extraction.Str(f.AppointmentDate))
	if dayText == "" {
		return Appointment{}, false
	}
	date, ok := ResolveDay(ref, dayText)
	if !ok {
		parsed, err := time.ParseInLocation("2006-01-02", dayText, ref.Location())
		if err != nil {
			return Appointment{}, false
		}
		date = parsed
	}
	a := Appointment{
		Date:        date,
		DayText:     dayText,
		TimeText:    extraction.Str(f.AppointmentTime),
		Type:        extraction.Str(f.AppointmentType),
		DurationMin: 30,
		Location:    "phone",
	}
	if a.Type == "" {
		a.Type = "call"
	}
	if h, m, ok := parseTimeText(a.TimeText); ok {
		at := date.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
		a.ScheduledAt = &at
	}
	return a, true
}

func outcome(interest int, hasAppt bool, s extraction.Signals) string {
	switch {
	case hasAppt:
		return "appointment_scheduled"
	case s.Declined || s.RemovalRequested:
		return "not_interested"
	case s.CallbackRequested:
		return "callback_requested"
	case interest >= 5:
		return "interested"
	default:
		return "follow_up_needed"
	}
}

func sentimentOf(f extraction.Facts) string {
	if s := extraction.Str(f.Sentiment); s != "" {
		return s
	}
	return "neutral"
}

func tasksFor(b Brief, s extraction.Signals, ref time.Time) ([]Task, []string) {
	var tasks []Task
	var docs []string
	who := b.Contact.Name
	if who == "" {
		who = "prospect"
	}
	for _, a := range b.Calendar.Appointments {
		due := a.Date
		if a.ScheduledAt != nil {
			due = a.ScheduledAt.Add(-time.Hour)
		}
		tasks = append(tasks, Task{
			Title:       fmt.Sprintf("Prepare for %s with %s", strings.ReplaceAll(a.Type, "_", " "), who),
			Description: a.Agenda,
			DueAt:       &due,
			Priority:    "high",
		})
	}
	if s.PricingRequested {
		docs = append(docs, "Pricing sheet")
		tasks = append(tasks, Task{Title: "Send pricing to " + who, Priority: "high"})
	}
	if s.CallbackRequested {
		tasks = append(tasks, Task{Title: "Call back " + who, Priority: "medium"})
	}
	if len(b.Actions.MissingInfo) > 0 && b.Executive.Outcome != "not_interested" {
		fields := make([]string, 0, len(b.Actions.MissingInfo))
		for _, m := range b.Actions.MissingInfo {
			fields = append(fields, m.Field)
		}
		tasks = append(tasks, Task{
			Title:       "Collect missing information",
			Description: strings.Join(fields, ", "),
			Priority:    "low",
		})
	}
	if b.Executive.Outcome != "not_interested" && len(docs) == 0 && b.Executive.InterestLevel >= 5 {
		docs = append(docs, "Company overview")
	}
	return tasks, docs
}

func nextBestAction(b Brief, s extraction.Signals) string {
	switch {
	case s.RemovalRequested || (s.Declined && len(b.Calendar.Appointments) == 0):
		return "Honor the opt-out; no further outreach"
	case len(b.Calendar.Appointments) > 0:
		a := b.Calendar.Appointments[0]
		when := a.DayText
		if a.TimeText != "" {
			when += " at " + a.TimeText
		}
		return "Confirm the " + when + " appointment and send a calendar invite"
	case s.PricingRequested:
		return "Send a tailored quote"
	case s.CallbackRequested:
		return "Call back at the requested time"
	case len(b.Actions.MissingInfo) > 0:
		return "Follow up to confirm " + strings.ToLower(b.Actions.MissingInfo[0].Field)
	default:
		return "Follow up by phone within one business day"
	}
}

func talkingPoints(b Brief) []string {
	var out []string
	for _, p := range b.Insights.PainPoints {
		out = append(out, "Address: "+p)
	}
	for _, o := range b.Insights.Objections {
		out = append(out, "Handle objection: "+o)
	}
	for i, m := range b.Actions.MissingInfo {
		if i == 2 {
			break
		}
		out = append(out, "Ask: "+m.Question)
	}
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

func suggestedOffer(b Brief) string {
	switch {
	case len(b.Intelligence.NegotiationSignals) > 0:
		return "Limited-time discount or financing option"
	case isVague(b.Qualification.Budget) && b.Executive.InterestLevel >= 5:
		return "Walk through financing options"
	default:
		return ""
	}
}

// ultraBrief is the subset of a Brief the model is trusted to write.
type ultraBrief struct {
	Executive struct {
		Outcome    string `json:"outcome"`
		NextAction string `json:"nextAction"`
	} `json:"executiveSummary"`
	Insights        ConversationInsights `json:"insights"`
	Intelligence    SalesIntelligence    `json:"salesIntelligence"`
	Recommendations Recommendations      `json:"recommendations"`
	Actions         struct {
		Documents []string `json:"documentsToSend"`
		NextSteps []string `json:"nextSteps"`
	} `json:"actionItems"`
}

func (g *Generator) ultra(ctx context.Context, in Input) (ultraBrief, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("TRANSCRIPT:\n")
	sb.WriteString(strings.TrimSpace(in.Transcript))
	if facts, err := json.Marshal(in.Facts); err == nil {
		sb.WriteString("\n\nEXTRACTED FACTS:\n")
		sb.Write(facts)
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Model:       g.model,
		System:      []string{ultraPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		MaxTokens:   4096,
		Temperature: 0.3,
		JSONOnly:    true,
	})
	if err != nil {
		return ultraBrief{}, err
	}
	raw, err := llm.ExtractJSONObject(resp.Text)
	if err != nil {
		return ultraBrief{}, err
	}
	var out ultraBrief
	if err := json.Unmarshal(raw, &out); err != nil {
		return ultraBrief{}, fmt.Errorf("brief: decode model brief: %w", err)
	}
	return out, nil
}

// applyOverlay replaces narrative fields the model filled. Calendar, contact and qualification
// stay deterministic.
func applyOverlay(b *Brief, o ultraBrief) {
	setText(&b.Executive.NextAction, o.Executive.NextAction)
	setList(&b.Insights.PainPoints, o.Insights.PainPoints)
	setList(&b.Insights.Objections, o.Insights.Objections)
	setList(&b.Insights.Questions, o.Insights.Questions)
	setList(&b.Insights.BuyingSignals, o.Insights.BuyingSignals)
	setText(&b.Insights.CommunicationStyle, o.Insights.CommunicationStyle)
	setList(&b.Intelligence.RapportNotes, o.Intelligence.RapportNotes)
	setList(&b.Intelligence.NegotiationSignals, o.Intelligence.NegotiationSignals)
	setText(&b.Intelligence.CompetitivePosition, o.Intelligence.CompetitivePosition)
	setText(&b.Recommendations.NextBestAction, o.Recommendations.NextBestAction)
	setList(&b.Recommendations.TalkingPoints, o.Recommendations.TalkingPoints)
	setText(&b.Recommendations.SuggestedOffer, o.Recommendations.SuggestedOffer)
	if o.Recommendations.WinProbability > 0 {
		b.Recommendations.WinProbability = clamp(o.Recommendations.WinProbability, 5, 95)
	}
	setList(&b.Actions.Documents, o.Actions.Documents)
	setList(&b.Actions.NextSteps, o.Actions.NextSteps)
}

func setText(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}
