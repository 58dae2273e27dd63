package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashPhone lets logs correlate a caller without carrying the number. Blank input hashes to "".
func HashPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:8])
}

// ScrubPII masks emails and phone numbers in webhook previews written to logs. Archived
// payloads stay raw.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}
