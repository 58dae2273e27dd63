package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names a background job type.
type Kind string

const (
	KindProcessCall     Kind = "process_call"
	KindFetchTranscript Kind = "fetch_transcript"
)

// Payload is the queue message body. Attempt counts deliveries of this logical job, from 1.
type Payload struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	CallID     string    `json:"call_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func encodePayload(p Payload) (Payload, string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Attempt < 1 {
		p.Attempt = 1
	}
	if p.EnqueuedAt.IsZero() {
		p.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return Payload{}, "", fmt.Errorf("jobs: failed to encode payload: %w", err)
	}
	return p, string(body), nil
}

func decodePayload(body string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Payload{}, fmt.Errorf("jobs: failed to decode payload: %w", err)
	}
	if p.Kind == "" || p.CallID == "" {
		return Payload{}, errors.New("jobs: payload missing kind or call_id")
	}
	if p.Attempt < 1 {
		p.Attempt = 1
	}
	return p, nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job is parked immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
