package webhook

import (
	"encoding/json"
	"time"
)

// Action is one canonical call lifecycle event. The set of implementations is closed.
type Action interface {
	actionName() string
}

type CallStarted struct {
	CallID      string
	StartedAt   time.Time
	PhoneNumber string
	ContactName string
	AssistantID string
	OrgID       string
	CampaignID  string
}

type CallEnded struct {
	CallID          string
	EndedAt         time.Time
	DurationSeconds int
	EndReason       string
	Failed          bool
	Transcript      string
	Summary         string
	RecordingURL    string
	Analysis        map[string]any
	Cost            float64
	PhoneNumber     string
	OrgID           string
	CampaignID      string
}

type TranscriptReceived struct {
	CallID string
	Text   string
}

type AnalysisReceived struct {
	CallID   string
	Analysis map[string]any
}

type RecordingReady struct {
	CallID string
	URL    string
}

// Unrecognized is a payload whose type has no canonical mapping. It is dropped after logging.
type Unrecognized struct {
	RawType string
	Reason  string
}

func (CallStarted) actionName() string        { return "call_started" }
func (CallEnded) actionName() string          { return "call_ended" }
func (TranscriptReceived) actionName() string { return "transcript" }
func (AnalysisReceived) actionName() string   { return "analysis" }
func (RecordingReady) actionName() string     { return "recording_ready" }
func (Unrecognized) actionName() string       { return "unrecognized" }

// ActionName returns the stable label of an action, used for logs, metrics and status counters.
func ActionName(a Action) string {
	if a == nil {
		return "unrecognized"
	}
	return a.actionName()
}

// Envelope wraps a normalized action with its delivery metadata.
type Envelope struct {
	EventID    string
	RawType    string
	CallID     string
	ReceivedAt time.Time
	Action     Action
	Raw        json.RawMessage
}
