package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callcrm-ai-platform/internal/llm"
)

type stubLLM struct {
	text string
	err  error
	req  llm.Request
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.req = req
	return llm.Response{Text: s.text}, s.err
}

const declineTranscript = "Not interested, please remove me from your list"

func TestEngineUsesModelOutput(t *testing.T) {
	stub := &stubLLM{text: "```json\n{\"prospectInformation\":{\"name\":\"Dana\"},\"interestLevel\":7,\"isQualifiedLead\":true}\n```"}
	engine := NewEngine(stub, nil, WithModel("model-x"))

	facts := engine.Extract(context.Background(), "User: hi", map[string]any{"customerNumber": "+15550001111"})
	assert.Equal(t, SourceModel, facts.Source)
	assert.Equal(t, "Dana", Str(facts.Name))
	assert.Equal(t, "+15550001111", Str(facts.Phone))
	assert.True(t, facts.Qualified())
	assert.Equal(t, "model-x", stub.req.Model)
	assert.True(t, stub.req.JSONOnly)
	assert.Less(t, stub.req.Temperature, float32(0.5))
	assert.True(t, strings.Contains(stub.req.Messages[0].Content, "METADATA"))
}

func TestEngineDerivesVerdictWhenModelOmitsIt(t *testing.T) {
	engine := NewEngine(&stubLLM{text: `{"interestLevel": 6}`}, nil)
	facts := engine.Extract(context.Background(), "User: tell me more", nil)
	require.NotNil(t, facts.IsQualified)
	assert.True(t, *facts.IsQualified)
}

func TestEngineFallsBack(t *testing.T) {
	cases := map[string]llm.Client{
		"no client":       nil,
		"model error":     &stubLLM{err: errors.New("rate limited")},
		"malformed reply": &stubLLM{text: "I could not parse that call."},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			facts := NewEngine(client, nil).Extract(context.Background(), declineTranscript, nil)
			assert.Equal(t, SourceFallback, facts.Source)
			require.NotNil(t, facts.IsQualified)
			assert.False(t, *facts.IsQualified)
			assert.LessOrEqual(t, facts.Interest(), 3)
		})
	}
}
