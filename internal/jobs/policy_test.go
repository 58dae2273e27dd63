package jobs

import (
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: 10 * time.Second}
	cases := map[int]time.Duration{
		0: 0,
		1: 10 * time.Second,
		2: 20 * time.Second,
		3: 40 * time.Second,
		5: 160 * time.Second,
		8: MaxDelay,
	}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
	if got := (RetryPolicy{MaxAttempts: 3}).Delay(2); got != 0 {
		t.Fatalf("zero base delay should not wait, got %s", got)
	}
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	if p.For(KindProcessCall).MaxAttempts != 3 {
		t.Fatalf("process_call attempts = %d", p.For(KindProcessCall).MaxAttempts)
	}
	if p.For(KindFetchTranscript).MaxAttempts != 6 {
		t.Fatalf("fetch_transcript attempts = %d", p.For(KindFetchTranscript).MaxAttempts)
	}
	if p.For("unknown").MaxAttempts != 1 {
		t.Fatal("unknown kinds should get a single attempt")
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("call not found")
	err := Permanent(base)
	if !IsPermanent(err) {
		t.Fatal("expected permanent error")
	}
	if !errors.Is(err, base) {
		t.Fatal("permanent error should unwrap to its cause")
	}
	if IsPermanent(base) {
		t.Fatal("plain error reported as permanent")
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}

func TestPayloadRoundTripDefaults(t *testing.T) {
	p, body, err := encodePayload(Payload{Kind: KindProcessCall, CallID: "call-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if p.ID == "" || p.Attempt != 1 || p.EnqueuedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", p)
	}
	got, err := decodePayload(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != p.ID || got.CallID != "call-1" || got.Kind != KindProcessCall {
		t.Fatalf("unexpected payload %+v", got)
	}
	if _, err := decodePayload(`{"kind":"process_call"}`); err == nil {
		t.Fatal("expected error for payload without call_id")
	}
}
