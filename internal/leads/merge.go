package leads

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/callcrm-ai-platform/internal/brief"
	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

const (
	DefaultNotesCap = 20
	noteAuthor      = "ai-call-analysis"
)

// AssigneeResolver picks the owner of a newly created lead.
type AssigneeResolver interface {
	DefaultAssignee(ctx context.Context, orgID, campaignID string) (string, error)
}

// MergeInput is one qualifying call's contribution to a lead.
type MergeInput struct {
	OrgID      string
	Phone      string
	CampaignID string
	CallID     string
	Facts      extraction.Facts
	Brief      *brief.Brief
	CalledAt   time.Time
}

// Merger folds call results into the lead for (org, phone). Merges for one key never interleave.
type Merger struct {
	repo     Repository
	locks    *KeyedMutex
	assignee AssigneeResolver
	notesCap int
	logger   *logging.Logger
	now      func() time.Time
}

type MergerOption func(*Merger)

func WithAssigneeResolver(r AssigneeResolver) MergerOption {
	return func(m *Merger) { m.assignee = r }
}

// WithNotesCap bounds the note history; the newest notes are kept.
func WithNotesCap(n int) MergerOption {
	return func(m *Merger) {
		if n > 0 {
			m.notesCap = n
		}
	}
}

func NewMerger(repo Repository, logger *logging.Logger, opts ...MergerOption) *Merger {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Merger{
		repo:     repo,
		locks:    NewKeyedMutex(),
		notesCap: DefaultNotesCap,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Merge creates or updates the lead. It reports whether the lead was newly created.
func (m *Merger) Merge(ctx context.Context, in MergeInput) (*Lead, bool, error) {
	orgID := strings.TrimSpace(in.OrgID)
	if orgID == "" {
		return nil, false, ErrMissingOrgID
	}
	phone := NormalizePhone(in.Phone)
	if phone == "" {
		phone = NormalizePhone(extraction.Str(in.Facts.Phone))
	}
	if phone == "" {
		return nil, false, ErrMissingPhone
	}

	unlock := m.locks.Lock(orgID + "|" + phone)
	defer unlock()

	now := m.now()
	calledAt := in.CalledAt
	if calledAt.IsZero() {
		calledAt = now
	}

	created := false
	lead, err := m.repo.Upsert(ctx, orgID, phone, func(existing *Lead) (*Lead, error) {
		lead := existing
		created = existing == nil
		if lead == nil {
			lead = &Lead{OrgID: orgID, Phone: phone, CreatedAt: now}
			lead.AssignedTo = m.defaultAssignee(ctx, orgID, in.CampaignID)
		}
		m.apply(lead, in, calledAt, now)
		return lead, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("leads: merge %s: %w", phone, err)
	}
	return lead, created, nil
}

func (m *Merger) defaultAssignee(ctx context.Context, orgID, campaignID string) string {
	if m.assignee == nil {
		return ""
	}
	id, err := m.assignee.DefaultAssignee(ctx, orgID, campaignID)
	if err != nil {
		m.logger.Warn("default assignee lookup failed", "org_id", orgID, "campaign_id", campaignID, "error", err)
		return ""
	}
	return id
}

func (m *Merger) apply(lead *Lead, in MergeInput, calledAt, now time.Time) {
	f := in.Facts
	overlay(&lead.Name, f.Name)
	overlay(&lead.Email, f.Email)
	overlay(&lead.AlternatePhone, f.AlternatePhone)
	overlay(&lead.Company, f.Company)
	overlay(&lead.JobTitle, f.JobTitle)
	overlay(&lead.Source, f.LeadSource)
	overlay(&lead.Budget, f.Budget)
	overlay(&lead.Timeline, f.Timeline)
	overlay(&lead.DecisionAuthority, f.DecisionAuthority)
	if lead.Source == "" {
		lead.Source = "ai_call"
	}

	if f.InterestLevel != nil {
		lead.InterestLevel = *f.InterestLevel
	}
	lead.QualityTier = TierFor(lead.InterestLevel)
	lead.Score = int(math.Round(float64(lead.InterestLevel) * 10))
	lead.QualificationStatus = StatusQualified

	if f.Converted != nil {
		lead.Converted = *f.Converted
	}
	if f.ConversionValue != nil {
		v := *f.ConversionValue
		lead.ConversionValue = &v
	}

	prior := callNote(lead.Notes, in.CallID)
	if prior < 0 {
		lead.CallAttempts++
	}
	last := calledAt
	lead.LastCallAt = &last
	if next := nextContact(in.Brief); next != nil {
		lead.NextCallAt = next
	}

	fresh := customFields(f, in.Brief)
	merged := make(map[string]any, len(lead.CustomFields)+len(fresh))
	for k, v := range lead.CustomFields {
		merged[k] = v
	}
	for k, v := range fresh {
		merged[k] = v
	}
	lead.CustomFields = merged

	content := noteContent(lead.InterestLevel, f, in.Brief)
	if prior >= 0 {
		// a rerun for the same call supersedes its earlier analysis
		lead.Notes[prior].Content = content
		lead.Notes[prior].UpdatedAt = now
	} else {
		lead.Notes = append(lead.Notes, Note{
			ID:        uuid.New().String(),
			Author:    noteAuthor,
			Content:   content,
			CallID:    in.CallID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(lead.Notes) > m.notesCap {
		lead.Notes = lead.Notes[len(lead.Notes)-m.notesCap:]
	}

	lead.DataQuality = DataQualityScore(factsOf(lead))
	lead.UpdatedAt = now
}

// callNote returns the index of the analysis note already written for callID, or -1.
func callNote(notes []Note, callID string) int {
	if callID == "" {
		return -1
	}
	for i, n := range notes {
		if n.CallID == callID && n.Author == noteAuthor {
			return i
		}
	}
	return -1
}

func overlay(dst *string, v *string) {
	if s := strings.TrimSpace(extraction.Str(v)); s != "" {
		*dst = s
	}
}

func nextContact(b *brief.Brief) *time.Time {
	if b == nil {
		return nil
	}
	for _, a := range b.Calendar.Appointments {
		at := a.Date
		if a.ScheduledAt != nil {
			at = *a.ScheduledAt
		}
		return &at
	}
	for _, fu := range b.Calendar.FollowUps {
		if fu.DueAt != nil {
			at := *fu.DueAt
			return &at
		}
	}
	return nil
}

// customFields builds only the sub-objects this call has data for, so the shallow merge keeps
// earlier sub-objects the call did not touch.
func customFields(f extraction.Facts, b *brief.Brief) map[string]any {
	out := map[string]any{}
	put := func(key string, obj map[string]any) {
		for k, v := range obj {
			if v == nil {
				delete(obj, k)
			}
		}
		if len(obj) > 0 {
			out[key] = obj
		}
	}

	put("address", map[string]any{
		"street":     text(f.Street),
		"city":       text(f.City),
		"state":      text(f.State),
		"postalCode": text(f.PostalCode),
		"country":    text(f.Country),
	})
	put("employment", map[string]any{
		"department":  text(f.Department),
		"industry":    text(f.Industry),
		"companySize": text(f.CompanySize),
	})
	put("callingCompany", map[string]any{
		"name":       text(f.CallingCompany),
		"onBehalfOf": text(f.CallingOnBehalfOf),
	})
	put("leadTracking", map[string]any{
		"referralSource":      text(f.ReferralSource),
		"previousInteraction": text(f.PreviousInteraction),
	})

	qual := map[string]any{
		"budget":            text(f.Budget),
		"timeline":          text(f.Timeline),
		"decisionAuthority": text(f.DecisionAuthority),
		"currentSolution":   text(f.CurrentSolution),
		"painPoints":        list(f.PainPoints),
		"competitors":       list(f.Competitors),
	}
	if f.InterestLevel != nil {
		qual["interestLevel"] = *f.InterestLevel
	}
	if f.IsQualified != nil {
		qual["isQualified"] = *f.IsQualified
	}
	put("qualification", qual)

	appt := map[string]any{
		"date": text(f.AppointmentDate),
		"time": text(f.AppointmentTime),
		"type": text(f.AppointmentType),
	}
	if b != nil && len(b.Calendar.Appointments) > 0 {
		a := b.Calendar.Appointments[0]
		appt["date"] = a.Date.Format("2006-01-02")
		if a.TimeText != "" {
			appt["time"] = a.TimeText
		}
		if a.ScheduledAt != nil {
			appt["scheduledAt"] = a.ScheduledAt.Format(time.RFC3339)
		}
		appt["type"] = a.Type
		appt["confirmed"] = a.Confirmed
	}
	put("appointment", appt)

	if b != nil {
		put("lastBrief", map[string]any{
			"outcome":        b.Executive.Outcome,
			"priority":       b.Executive.Priority,
			"nextBestAction": b.Recommendations.NextBestAction,
			"winProbability": b.Recommendations.WinProbability,
		})
	}
	return out
}

func text(s *string) any {
	if v := strings.TrimSpace(extraction.Str(s)); v != "" {
		return v
	}
	return nil
}

func list(v []string) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func noteContent(interest int, f extraction.Facts, b *brief.Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "AI call analysis: interest %d/10", interest)
	if f.Qualified() {
		sb.WriteString(", qualified")
	}
	if b == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, ". Outcome: %s. Next: %s.", strings.ReplaceAll(b.Executive.Outcome, "_", " "), b.Recommendations.NextBestAction)
	if len(b.Actions.MissingInfo) > 0 {
		missing := make([]string, 0, len(b.Actions.MissingInfo))
		for _, it := range b.Actions.MissingInfo {
			missing = append(missing, it.Field)
		}
		fmt.Fprintf(&sb, " Missing: %s.", strings.Join(missing, ", "))
	}
	return sb.String()
}
