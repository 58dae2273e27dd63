package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured is returned by callers that hold no model client.
var ErrNotConfigured = errors.New("llm: model not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// JSONOnly asks providers that support it to constrain output to a JSON document.
	JSONOnly bool
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes a single chat-style request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
