package jobs

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Scheduler publishes pipeline jobs for the reconciler.
type Scheduler struct {
	queue    Queue
	policies Policies
}

func NewScheduler(queue Queue, policies Policies) *Scheduler {
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Scheduler{queue: queue, policies: policies}
}

func (s *Scheduler) EnqueueProcessing(ctx context.Context, callID string) error {
	return s.publish(ctx, Payload{Kind: KindProcessCall, CallID: callID, Attempt: 1}, 0)
}

// ScheduleTranscriptFetch queues a delayed detail fetch using the fetch policy's backoff.
func (s *Scheduler) ScheduleTranscriptFetch(ctx context.Context, callID string, attempt int) error {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.policies.For(KindFetchTranscript).Delay(attempt)
	return s.publish(ctx, Payload{Kind: KindFetchTranscript, CallID: callID, Attempt: attempt}, delay)
}

func (s *Scheduler) publish(ctx context.Context, p Payload, delay time.Duration) error {
	if strings.TrimSpace(p.CallID) == "" {
		return errors.New("jobs: call id required")
	}
	_, body, err := encodePayload(p)
	if err != nil {
		return err
	}
	return s.queue.Send(ctx, body, delay)
}
