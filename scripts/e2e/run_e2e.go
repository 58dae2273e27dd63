// Package main drives a running API through one qualifying call and checks the lead lands.
//
// It posts call-started and end-of-call-report webhooks (signed when WEBHOOK_SIGNING_SECRET
// is set), replays the end-of-call report to confirm dedup, then polls the admin leads
// endpoint until the caller appears as a qualified lead.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 ADMIN_JWT_SECRET=... go run ./scripts/e2e
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/wolfman30/callcrm-ai-platform/internal/webhook"
)

const (
	orgID        = "org-e2e"
	maxWait      = 60 * time.Second
	pollInterval = 2 * time.Second
)

const transcript = `AI: Hi, this is Sam from Bright Roofs, do you have a minute?
User: Sure. We're really interested in adding solar panels, the bills are killing us.
AI: Great. Are you the homeowner?
User: Yes, I own the house with my wife and we decide together.
AI: Would a consultation work for you?
User: Friday at 2pm works for me.`

type client struct {
	base   string
	secret string
	admin  string
	http   *http.Client
	callID string
	phone  string
}

func main() {
	_ = godotenv.Load()

	c := &client{
		base:   strings.TrimRight(envOr("API_BASE_URL", "http://localhost:8080"), "/"),
		secret: os.Getenv("WEBHOOK_SIGNING_SECRET"),
		admin:  os.Getenv("ADMIN_JWT_SECRET"),
		http:   &http.Client{Timeout: 10 * time.Second},
		callID: "e2e-" + uuid.NewString(),
		phone:  fmt.Sprintf("+1555%07d", time.Now().Unix()%10000000),
	}
	if c.admin == "" {
		fail("ADMIN_JWT_SECRET is required to read leads")
	}

	step("call started", c.postWebhook(c.event("call-started", nil)))

	ended := c.event("end-of-call-report", map[string]any{
		"endedReason": "customer-ended-call",
		"transcript":  transcript,
	})
	step("call ended", c.postWebhook(ended))
	step("duplicate delivery", c.postWebhook(ended))

	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		lead, err := c.findLead()
		if err != nil {
			fail(err.Error())
		}
		if lead != nil {
			fmt.Printf("PASS lead %v status=%v attempts=%v\n", lead["id"], lead["qualification_status"], lead["call_attempts"])
			if fmt.Sprint(lead["call_attempts"]) != "1" {
				fail("duplicate delivery was processed twice")
			}
			return
		}
		time.Sleep(pollInterval)
	}
	fail(fmt.Sprintf("no lead for %s after %s", c.phone, maxWait))
}

func (c *client) event(kind string, extra map[string]any) map[string]any {
	msg := map[string]any{
		"type":     kind,
		"call":     map[string]any{"id": c.callID, "customer": map[string]any{"number": c.phone}},
		"metadata": map[string]any{"organizationId": orgID},
	}
	for k, v := range extra {
		msg[k] = v
	}
	return map[string]any{"id": uuid.NewString(), "message": msg}
}

func (c *client) postWebhook(payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+"/webhook", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(webhook.SignatureHeader, fmt.Sprintf("%x", webhook.Sign(c.secret, body)))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, raw)
	}
	return nil
}

func (c *client) findLead() (map[string]any, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "e2e",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}).SignedString([]byte(c.admin))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, c.base+"/admin/orgs/"+orgID+"/leads", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list leads status %d", resp.StatusCode)
	}
	var out struct {
		Leads []map[string]any `json:"leads"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	for _, lead := range out.Leads {
		if lead["phone"] == c.phone {
			return lead, nil
		}
	}
	return nil, nil
}

func step(name string, err error) {
	if err != nil {
		fail(name + ": " + err.Error())
	}
	fmt.Printf("ok   %s\n", name)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "FAIL "+msg)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
