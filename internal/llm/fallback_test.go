package llm

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
}

func (s *stubClient) Complete(context.Context, Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestFallbackClient(t *testing.T) {
	primary := &stubClient{err: errors.New("bedrock down")}
	secondary := &stubClient{resp: Response{Text: "ok"}}
	client := NewFallbackClient(primary, secondary, nil)

	resp, err := client.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected fallback success: %v", err)
	}
	if resp.Text != "ok" || primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("unexpected result %+v primary=%d secondary=%d", resp, primary.calls, secondary.calls)
	}

	healthy := &stubClient{resp: Response{Text: "primary"}}
	untouched := &stubClient{}
	resp, _ = NewFallbackClient(healthy, untouched, nil).Complete(context.Background(), Request{})
	if resp.Text != "primary" || untouched.calls != 0 {
		t.Fatalf("expected primary response without fallback, got %+v", resp)
	}

	secondary.err = errors.New("gemini down")
	if _, err := client.Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected error when both providers fail")
	}
}

func TestNewFallbackClientCollapses(t *testing.T) {
	only := &stubClient{}
	if NewFallbackClient(only, nil, nil) != Client(only) {
		t.Fatal("expected primary returned unchanged")
	}
	if NewFallbackClient(nil, only, nil) != Client(only) {
		t.Fatal("expected fallback returned when primary missing")
	}
}
