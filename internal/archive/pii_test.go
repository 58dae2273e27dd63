package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPhone(t *testing.T) {
	h1 := HashPhone("+15550100123")
	h2 := HashPhone("+15550100123")
	h3 := HashPhone("+15551234567")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 16)
	assert.Empty(t, HashPhone("  "))
}

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"email", "send it to maria@brightsolar.com please", "send it to [EMAIL] please"},
		{"phone", "reach me at (330) 333-2654", "reach me at[PHONE]"},
		{"phone with plus", "customer.number=+15550100123", "customer.number=[PHONE]"},
		{"both", `{"email":"a@b.com","phone":"330-333-2654"}`, `{"email":"[EMAIL]","phone":"[PHONE]"}`},
		{"no pii", `{"type":"status-update","status":"ringing"}`, `{"type":"status-update","status":"ringing"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ScrubPII(tt.input))
		})
	}
}
