package leads

import (
	"strings"
	"time"

	"github.com/wolfman30/callcrm-ai-platform/internal/brief"
)

// QualityTier buckets a lead by interest.
type QualityTier string

const (
	TierHot  QualityTier = "hot"
	TierWarm QualityTier = "warm"
	TierCool QualityTier = "cool"
	TierCold QualityTier = "cold"
)

const StatusQualified = "qualified"

// TierFor maps a 1-10 interest level to a tier: >=7 hot, >=5 warm, >=3 cool, else cold.
func TierFor(interest int) QualityTier {
	switch {
	case interest >= 7:
		return TierHot
	case interest >= 5:
		return TierWarm
	case interest >= 3:
		return TierCool
	default:
		return TierCold
	}
}

// Note is one timestamped entry in a lead's history.
type Note struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CallID    string    `json:"call_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead is the CRM record for one (organization, phone) pair.
type Lead struct {
	ID                  string         `json:"id"`
	OrgID               string         `json:"org_id"`
	Phone               string         `json:"phone"`
	Name                string         `json:"name,omitempty"`
	Email               string         `json:"email,omitempty"`
	AlternatePhone      string         `json:"alternate_phone,omitempty"`
	Company             string         `json:"company,omitempty"`
	JobTitle            string         `json:"job_title,omitempty"`
	Source              string         `json:"source,omitempty"`
	InterestLevel       int            `json:"interest_level"`
	Budget              string         `json:"budget,omitempty"`
	Timeline            string         `json:"timeline,omitempty"`
	DecisionAuthority   string         `json:"decision_authority,omitempty"`
	QualityTier         QualityTier    `json:"quality_tier"`
	QualificationStatus string         `json:"qualification_status"`
	Score               int            `json:"score"`
	DataQuality         int            `json:"data_quality"`
	CallAttempts        int            `json:"call_attempts"`
	LastCallAt          *time.Time     `json:"last_call_at,omitempty"`
	NextCallAt          *time.Time     `json:"next_call_at,omitempty"`
	Converted           bool           `json:"converted"`
	ConversionValue     *float64       `json:"conversion_value,omitempty"`
	AssignedTo          string         `json:"assigned_to,omitempty"`
	CustomFields        map[string]any `json:"custom_fields,omitempty"`
	Notes               []Note         `json:"notes,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Snapshot is the view of the lead the brief generator consults.
func (l *Lead) Snapshot() brief.LeadSnapshot {
	if l == nil {
		return brief.LeadSnapshot{}
	}
	snap := brief.LeadSnapshot{
		Name:              l.Name,
		Email:             l.Email,
		Company:           l.Company,
		JobTitle:          l.JobTitle,
		Budget:            l.Budget,
		Timeline:          l.Timeline,
		DecisionAuthority: l.DecisionAuthority,
		PreviousCalls:     l.CallAttempts,
		LastContactAt:     l.LastCallAt,
	}
	if addr, ok := l.CustomFields["address"].(map[string]any); ok {
		if city, ok := addr["city"].(string); ok {
			snap.City = city
		}
	}
	return snap
}

// NormalizePhone reduces a phone number to +digits so the same caller keys to one lead.
// Ten-digit numbers are assumed to be North American.
func NormalizePhone(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case len(digits) == 10:
		return "+1" + digits
	default:
		return "+" + digits
	}
}

// ListFilter narrows ListByOrg.
type ListFilter struct {
	Tier   QualityTier
	Limit  int
	Offset int
}
