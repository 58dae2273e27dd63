package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type stubConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (s *stubConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = params
	return s.out, s.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(15)},
	}
}

func TestBedrockClientComplete(t *testing.T) {
	api := &stubConverse{out: textOutput(` {"interestLevel": 8} `)}
	client := NewBedrockClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), Request{
		System:      []string{"extract facts"},
		Messages:    []Message{{Role: RoleSystem, Content: "json only"}, {Role: RoleUser, Content: "transcript"}},
		MaxTokens:   512,
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != `{"interestLevel": 8}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if aws.ToString(api.input.ModelId) != "anthropic.claude-3-haiku" {
		t.Fatalf("expected default model id, got %q", aws.ToString(api.input.ModelId))
	}
	if len(api.input.System) != 2 {
		t.Fatalf("expected system role folded into system blocks, got %d", len(api.input.System))
	}
	if len(api.input.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.input.Messages))
	}
}

func TestBedrockClientErrors(t *testing.T) {
	client := NewBedrockClient(&stubConverse{err: errors.New("throttled")}, "m")
	if _, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("expected converse error")
	}

	client = NewBedrockClient(&stubConverse{out: textOutput("   ")}, "m")
	if _, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("expected empty text error")
	}

	client = NewBedrockClient(&stubConverse{}, "")
	if _, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("expected missing model error")
	}

	client = NewBedrockClient(&stubConverse{}, "m")
	if _, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: "tool", Content: "x"}}}); err == nil {
		t.Fatal("expected unsupported role error")
	}
}
