package webhook

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "shared-secret"
	body := []byte(`{"type":"call-ended","call":{"id":"call-1"}}`)
	sig := hex.EncodeToString(Sign(secret, body))

	if err := VerifySignature(secret, sig, body); err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}
	if err := VerifySignature(secret, "sha256="+sig, body); err != nil {
		t.Fatalf("expected prefixed signature to verify: %v", err)
	}
	tampered := []byte(`{"type":"call-ended","call":{"id":"call-2"}}`)
	if err := VerifySignature(secret, sig, tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := VerifySignature(secret, "", body); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if err := VerifySignature(secret, "zz-not-hex", body); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for bad hex, got %v", err)
	}
	if err := VerifySignature("", "", tampered); err != nil {
		t.Fatalf("expected unconfigured secret to pass, got %v", err)
	}
}
