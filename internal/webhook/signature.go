package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Provider-Signature"

var (
	ErrMissingSignature = errors.New("webhook: missing signature")
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

// VerifySignature checks header against HMAC-SHA256(secret, body). An empty secret means
// verification is not configured and every payload passes.
func VerifySignature(secret, header string, body []byte) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	header = strings.TrimPrefix(header, "sha256=")
	provided, err := hex.DecodeString(header)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(Sign(secret, body), provided) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
