package provider

import (
	"encoding/json"
	"strings"
	"time"
)

// CallDetail is the subset of the provider's call object the pipeline reads.
type CallDetail struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	EndedReason   string          `json:"endedReason"`
	StartedAt     *time.Time      `json:"startedAt"`
	EndedAt       *time.Time      `json:"endedAt"`
	Cost          float64         `json:"cost"`
	Summary       string          `json:"summary"`
	RawTranscript json.RawMessage `json:"transcript"`
	RecordingURL  string          `json:"recordingUrl"`
	Analysis      map[string]any  `json:"analysis"`
	Customer      struct {
		Number string `json:"number"`
		Name   string `json:"name"`
	} `json:"customer"`
	Artifact struct {
		Transcript   string `json:"transcript"`
		RecordingURL string `json:"recordingUrl"`
		Messages     []Turn `json:"messages"`
	} `json:"artifact"`
}

// Turn is one utterance in the artifact message log.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
	Content string `json:"content"`
}

// Ended reports whether the provider considers the call finished.
func (d *CallDetail) Ended() bool {
	return d != nil && (strings.EqualFold(d.Status, "ended") || d.EndedAt != nil)
}

// Transcript returns the best available transcript text, or "" when none is ready.
func (d *CallDetail) Transcript() string {
	if d == nil {
		return ""
	}
	if len(d.RawTranscript) > 0 {
		var text string
		if err := json.Unmarshal(d.RawTranscript, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		var turns []Turn
		if err := json.Unmarshal(d.RawTranscript, &turns); err == nil {
			if joined := joinTurns(turns); joined != "" {
				return joined
			}
		}
	}
	if t := strings.TrimSpace(d.Artifact.Transcript); t != "" {
		return t
	}
	return joinTurns(d.Artifact.Messages)
}

// Recording returns the recording URL from either location the provider uses.
func (d *CallDetail) Recording() string {
	if d == nil {
		return ""
	}
	if d.RecordingURL != "" {
		return d.RecordingURL
	}
	return d.Artifact.RecordingURL
}

func joinTurns(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Message)
		if text == "" {
			text = strings.TrimSpace(t.Content)
		}
		if text == "" {
			continue
		}
		switch t.Role {
		case "system", "tool":
			continue
		case "bot", "assistant":
			lines = append(lines, "AI: "+text)
		case "user", "customer":
			lines = append(lines, "User: "+text)
		default:
			lines = append(lines, t.Role+": "+text)
		}
	}
	return strings.Join(lines, "\n")
}
