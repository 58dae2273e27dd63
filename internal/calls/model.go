package calls

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of a call record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further lifecycle transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CallRecord is the canonical record of one provider call attempt. It is addressable by
// either the internal ID or the provider call ID.
type CallRecord struct {
	ID                 string          `json:"id"`
	ProviderCallID     string          `json:"provider_call_id,omitempty"`
	OrgID              string          `json:"org_id,omitempty"`
	CampaignID         string          `json:"campaign_id,omitempty"`
	AssistantID        string          `json:"assistant_id,omitempty"`
	PhoneNumber        string          `json:"phone_number,omitempty"`
	ContactName        string          `json:"contact_name,omitempty"`
	Status             Status          `json:"status"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	EndedAt            *time.Time      `json:"ended_at,omitempty"`
	DurationSeconds    int             `json:"duration_seconds"`
	EndReason          string          `json:"end_reason,omitempty"`
	Transcript         string          `json:"transcript,omitempty"`
	Summary            string          `json:"summary,omitempty"`
	Sentiment          string          `json:"sentiment,omitempty"`
	RecordingURL       string          `json:"recording_url,omitempty"`
	Analysis           map[string]any  `json:"analysis,omitempty"`
	QualificationScore *int            `json:"qualification_score,omitempty"`
	IsQualified        bool            `json:"is_qualified"`
	CreatedCRMContact  bool            `json:"created_crm_contact"`
	Cost               float64         `json:"cost"`
	LeadID             string          `json:"lead_id,omitempty"`
	RawPayload         json.RawMessage `json:"raw_payload,omitempty"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ReadyForExtraction reports whether the call is completed and carries a transcript.
func (c *CallRecord) ReadyForExtraction() bool {
	return c != nil && c.Status == StatusCompleted && strings.TrimSpace(c.Transcript) != ""
}

// Matches reports whether ref names this call in either id space.
func (c *CallRecord) Matches(ref string) bool {
	if c == nil || ref == "" {
		return false
	}
	return c.ID == ref || c.ProviderCallID == ref
}

// StartFields carries data from a call-started event.
type StartFields struct {
	StartedAt   time.Time
	PhoneNumber string
	ContactName string
	AssistantID string
	OrgID       string
	CampaignID  string
	RawPayload  json.RawMessage
}

// EndFields carries the lifecycle portion of a call-ended event. Transcript, analysis
// and recording are attached separately so one failing write does not drop the others.
type EndFields struct {
	EndedAt         time.Time
	DurationSeconds int
	EndReason       string
	Summary         string
	Cost            float64
	Failed          bool
	PhoneNumber     string
	OrgID           string
	CampaignID      string
	RawPayload      json.RawMessage
}

// Outcome is the projection of a pipeline run back onto the call record. Each run
// fully supersedes the previous one.
type Outcome struct {
	Summary            string
	Sentiment          string
	QualificationScore int
	IsQualified        bool
	CreatedCRMContact  bool
	LeadID             string
	Metadata           map[string]any
	ProcessedAt        time.Time
}
