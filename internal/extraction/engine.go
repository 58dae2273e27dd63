package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/callcrm-ai-platform/internal/llm"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 2048
)

// Engine turns a call transcript into Facts, using the model when one is configured and
// degrading to Heuristic on any model failure.
type Engine struct {
	client  llm.Client
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

type EngineOption func(*Engine)

func WithModel(model string) EngineOption {
	return func(e *Engine) { e.model = strings.TrimSpace(model) }
}

func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine builds an engine. A nil client always uses the fallback heuristics.
func NewEngine(client llm.Client, logger *logging.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{client: client, timeout: defaultTimeout, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Extract never fails; model errors are logged and the heuristic result is returned.
func (e *Engine) Extract(ctx context.Context, transcript string, metadata map[string]any) Facts {
	facts, err := e.extractWithModel(ctx, transcript, metadata)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			e.logger.Warn("model extraction failed, using fallback heuristics", "error", err)
		}
		facts = Heuristic(transcript)
	}
	fillFromMetadata(&facts, metadata)
	return facts
}

func (e *Engine) extractWithModel(ctx context.Context, transcript string, metadata map[string]any) (Facts, error) {
	if e.client == nil {
		return Facts{}, llm.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		System:      []string{systemPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userContent(transcript, metadata)}},
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.1,
		JSONOnly:    true,
	})
	if err != nil {
		return Facts{}, err
	}
	raw, err := llm.DecodeObject(resp.Text)
	if err != nil {
		return Facts{}, err
	}
	facts := Coalesce(raw)
	facts.Source = SourceModel
	if facts.IsQualified == nil {
		facts.IsQualified = ptr(Qualifies(facts, DetectSignals(transcript)))
	}
	return facts, nil
}

func userContent(transcript string, metadata map[string]any) string {
	var sb strings.Builder
	sb.WriteString("TRANSCRIPT:\n")
	sb.WriteString(strings.TrimSpace(transcript))
	if len(metadata) > 0 {
		if encoded, err := json.Marshal(metadata); err == nil {
			sb.WriteString("\n\n")
			sb.WriteString(metadataNote)
			sb.WriteString("\nMETADATA:\n")
			sb.Write(encoded)
		}
	}
	return sb.String()
}

// fillFromMetadata backfills the prospect phone from the provider's customer number.
func fillFromMetadata(f *Facts, metadata map[string]any) {
	if f.Phone != nil {
		return
	}
	for _, key := range []string{"customerNumber", "phoneNumber", "phone_number"} {
		if s, ok := asText(metadata[key]); ok {
			f.Phone = &s
			return
		}
	}
}
