package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/callcrm-ai-platform/internal/events"
)

var (
	ErrEmptyPayload     = errors.New("webhook: empty payload")
	ErrMalformedPayload = errors.New("webhook: malformed payload")
)

// canonical type names after lowercasing and folding "." and "_" into "-"
var typeAliases = map[string]string{
	"call-started":       "started",
	"call-start":         "started",
	"call-initiated":     "started",
	"call-ended":         "ended",
	"call-end":           "ended",
	"call-completed":     "ended",
	"end-of-call-report": "ended",
	"transcript":         "transcript",
	"transcript-ready":   "transcript",
	"call-transcript":    "transcript",
	"analysis":           "analysis",
	"analysis-ready":     "analysis",
	"call-analysis":      "analysis",
	"recording-ready":    "recording",
	"recording":          "recording",
	"call-recording":     "recording",
}

// end reasons that mean the call never produced a conversation
var failedEndReasons = []string{"error", "failed", "no-answer", "did-not-answer", "busy"}

// payload reads fields from a provider message, preferring the nested "message" object
// and falling back to the top-level document.
type payload struct {
	scopes []map[string]any
}

func (p payload) value(paths ...string) any {
	for _, path := range paths {
		for _, scope := range p.scopes {
			if v := lookupPath(scope, path); v != nil {
				return v
			}
		}
	}
	return nil
}

func (p payload) str(paths ...string) string {
	for _, path := range paths {
		for _, scope := range p.scopes {
			if s := asString(lookupPath(scope, path)); s != "" {
				return s
			}
		}
	}
	return ""
}

func (p payload) object(paths ...string) map[string]any {
	for _, path := range paths {
		for _, scope := range p.scopes {
			if m, ok := lookupPath(scope, path).(map[string]any); ok && len(m) > 0 {
				return m
			}
		}
	}
	return nil
}

func lookupPath(m map[string]any, path string) any {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[part]
		if !ok || cur == nil {
			return nil
		}
	}
	return cur
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	}
	return 0
}

// asTime accepts RFC3339 strings and epoch milliseconds.
func asTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return ts.UTC()
		}
	case json.Number:
		if ms, err := t.Int64(); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Time{}
}

// Normalize maps a raw provider payload to a canonical Envelope. Unknown event types,
// and known types without a call id, normalize to Unrecognized rather than an error.
func Normalize(body []byte, receivedAt time.Time) (Envelope, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Envelope{}, ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if root == nil {
		return Envelope{}, ErrMalformedPayload
	}

	p := payload{scopes: []map[string]any{root}}
	if msg, ok := root["message"].(map[string]any); ok {
		p.scopes = []map[string]any{msg, root}
	}

	rawType := p.str("type", "event", "event_type", "eventType")
	callID := p.str("call.id", "callId", "call_id", "callID")

	env := Envelope{
		RawType:    rawType,
		CallID:     callID,
		ReceivedAt: receivedAt.UTC(),
		Raw:        json.RawMessage(append([]byte(nil), body...)),
	}
	env.EventID = events.EventID(payloadEventID(p, callID), rawType, callID, receivedAt)
	env.Action = mapAction(p, rawType, callID)
	return env, nil
}

func payloadEventID(p payload, callID string) string {
	id := p.str("event_id", "eventId", "id")
	// flat payloads sometimes carry the call id as "id"; reusing it would collapse every
	// lifecycle event for the call into one dedup key
	if id == callID {
		return ""
	}
	return id
}

func canonicalType(p payload, rawType string) string {
	folded := strings.ToLower(strings.TrimSpace(rawType))
	folded = strings.NewReplacer(".", "-", "_", "-").Replace(folded)
	if folded == "status-update" {
		switch strings.ToLower(p.str("status", "call.status")) {
		case "in-progress", "ringing", "queued":
			return "started"
		case "ended":
			return "ended"
		}
		return ""
	}
	return typeAliases[folded]
}

func mapAction(p payload, rawType, callID string) Action {
	kind := canonicalType(p, rawType)
	if kind == "" {
		return Unrecognized{RawType: rawType, Reason: "unknown event type"}
	}
	if callID == "" {
		return Unrecognized{RawType: rawType, Reason: "missing call id"}
	}

	switch kind {
	case "started":
		return CallStarted{
			CallID:      callID,
			StartedAt:   asTime(p.value("startedAt", "call.startedAt", "started_at", "timestamp")),
			PhoneNumber: phoneOf(p),
			ContactName: p.str("call.customer.name", "customer.name", "contactName", "contact_name"),
			AssistantID: p.str("call.assistantId", "assistantId", "assistant.id", "assistant_id"),
			OrgID:       orgOf(p),
			CampaignID:  campaignOf(p),
		}
	case "ended":
		return endedAction(p, callID)
	case "transcript":
		if strings.EqualFold(p.str("transcriptType", "transcript_type"), "partial") {
			return Unrecognized{RawType: rawType, Reason: "partial transcript"}
		}
		return TranscriptReceived{CallID: callID, Text: transcriptOf(p)}
	case "analysis":
		analysis := p.object("analysis", "call.analysis")
		if analysis == nil {
			return Unrecognized{RawType: rawType, Reason: "analysis event without analysis"}
		}
		return AnalysisReceived{CallID: callID, Analysis: analysis}
	case "recording":
		url := recordingOf(p)
		if url == "" {
			return Unrecognized{RawType: rawType, Reason: "recording event without url"}
		}
		return RecordingReady{CallID: callID, URL: url}
	}
	return Unrecognized{RawType: rawType}
}

func endedAction(p payload, callID string) CallEnded {
	started := asTime(p.value("startedAt", "call.startedAt", "started_at"))
	ended := asTime(p.value("endedAt", "call.endedAt", "ended_at", "timestamp"))

	duration := int(math.Round(asFloat(p.value("durationSeconds", "duration_seconds", "duration", "call.duration"))))
	if duration <= 0 && !started.IsZero() && ended.After(started) {
		duration = int(ended.Sub(started).Seconds())
	}

	reason := p.str("endedReason", "endReason", "ended_reason", "call.endedReason")
	status := strings.ToLower(p.str("status", "call.status"))
	failed := status == "failed"
	lowered := strings.ToLower(reason)
	for _, marker := range failedEndReasons {
		if strings.Contains(lowered, marker) {
			failed = true
			break
		}
	}

	analysis := p.object("analysis", "call.analysis")
	summary := p.str("summary", "analysis.summary", "call.summary")

	return CallEnded{
		CallID:          callID,
		EndedAt:         ended,
		DurationSeconds: duration,
		EndReason:       reason,
		Failed:          failed,
		Transcript:      transcriptOf(p),
		Summary:         summary,
		RecordingURL:    recordingOf(p),
		Analysis:        analysis,
		Cost:            asFloat(p.value("cost", "call.cost")),
		PhoneNumber:     phoneOf(p),
		OrgID:           orgOf(p),
		CampaignID:      campaignOf(p),
	}
}

func phoneOf(p payload) string {
	return p.str("call.customer.number", "customer.number", "phoneNumber", "phone_number", "to")
}

func orgOf(p payload) string {
	return p.str("call.metadata.organizationId", "metadata.organizationId", "metadata.organization_id",
		"call.orgId", "orgId", "organization_id")
}

func campaignOf(p payload) string {
	return p.str("call.metadata.campaignId", "metadata.campaignId", "metadata.campaign_id",
		"campaignId", "campaign_id")
}

func recordingOf(p payload) string {
	return p.str("recordingUrl", "recording_url", "artifact.recordingUrl", "recording.url", "call.recordingUrl", "url")
}

// transcriptOf reads a transcript that is either a plain string or a list of role/message turns.
func transcriptOf(p payload) string {
	if s := p.str("transcript", "artifact.transcript", "call.transcript", "text"); s != "" {
		return s
	}
	for _, path := range []string{"transcript", "artifact.messages", "messages"} {
		turns, ok := p.value(path).([]any)
		if !ok || len(turns) == 0 {
			continue
		}
		if text := joinTurns(turns); text != "" {
			return text
		}
	}
	return ""
}

func joinTurns(turns []any) string {
	var sb strings.Builder
	for _, t := range turns {
		turn, ok := t.(map[string]any)
		if !ok {
			continue
		}
		role := asString(turn["role"])
		if role == "system" || role == "tool" {
			continue
		}
		text := asString(turn["message"])
		if text == "" {
			text = asString(turn["content"])
		}
		if text == "" {
			continue
		}
		switch role {
		case "bot", "assistant":
			role = "AI"
		case "user", "customer":
			role = "User"
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(role + ": " + text)
	}
	return sb.String()
}
