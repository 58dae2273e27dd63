package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

func instantPolicies() Policies {
	return Policies{
		KindProcessCall:     {MaxAttempts: 3},
		KindFetchTranscript: {MaxAttempts: 2},
	}
}

func newTestWorker(t *testing.T, q Queue, failed FailedJobStore, m *metrics.PipelineMetrics) *Worker {
	t.Helper()
	return NewWorker(q, logging.Default(),
		WithPolicies(instantPolicies()),
		WithFailedJobStore(failed),
		WithMetrics(m),
		WithReceiveWaitSeconds(1),
		WithReceiveBatchSize(1),
	)
}

func drain(t *testing.T, w *Worker, q *MemoryQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for q.Pending() > 0 {
		if _, err := w.Poll(ctx); err != nil {
			t.Fatalf("poll: %v", err)
		}
	}
}

func TestWorkerHandlesJob(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()
	w := newTestWorker(t, q, NewMemoryFailedJobStore(), nil)

	var got []string
	w.Handle(KindProcessCall, func(_ context.Context, p Payload) error {
		got = append(got, p.CallID)
		return nil
	})

	if err := NewScheduler(q, nil).EnqueueProcessing(context.Background(), "call-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drain(t, w, q)

	if len(got) != 1 || got[0] != "call-1" {
		t.Fatalf("handler calls = %v", got)
	}
}

func TestWorkerRetriesThenParks(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()
	failed := NewMemoryFailedJobStore()
	reg := prometheus.NewRegistry()
	m := metrics.NewPipelineMetrics(reg)
	w := newTestWorker(t, q, failed, m)

	var attempts []int
	w.Handle(KindProcessCall, func(_ context.Context, p Payload) error {
		attempts = append(attempts, p.Attempt)
		return errors.New("database unavailable")
	})

	if err := NewScheduler(q, instantPolicies()).EnqueueProcessing(context.Background(), "call-2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drain(t, w, q)

	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Fatalf("attempts = %v, want [1 2 3]", attempts)
	}
	parked := failed.List()
	if len(parked) != 1 {
		t.Fatalf("parked = %d, want 1", len(parked))
	}
	if parked[0].CallID != "call-2" || parked[0].Attempts != 3 || parked[0].LastError != "database unavailable" {
		t.Fatalf("unexpected parked job %+v", parked[0])
	}
	if v := counterValue(t, reg, "callcrm_jobs_retries_total"); v != 2 {
		t.Fatalf("retries metric = %v, want 2", v)
	}
	if v := counterValue(t, reg, "callcrm_jobs_parked_total"); v != 1 {
		t.Fatalf("parked metric = %v, want 1", v)
	}
}

func TestWorkerPermanentErrorParksImmediately(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()
	failed := NewMemoryFailedJobStore()
	w := newTestWorker(t, q, failed, nil)

	var calls int32
	w.Handle(KindProcessCall, func(context.Context, Payload) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("call record missing"))
	})

	if err := NewScheduler(q, nil).EnqueueProcessing(context.Background(), "call-3"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drain(t, w, q)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(failed.List()) != 1 {
		t.Fatal("expected the job to be parked")
	}
}

func TestWorkerRecoversHandlerPanic(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()
	failed := NewMemoryFailedJobStore()
	w := newTestWorker(t, q, failed, nil)
	w.Handle(KindFetchTranscript, func(context.Context, Payload) error {
		panic("boom")
	})

	if err := NewScheduler(q, instantPolicies()).ScheduleTranscriptFetch(context.Background(), "call-4", 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	drain(t, w, q)

	parked := failed.List()
	if len(parked) != 1 || parked[0].Attempts != 2 {
		t.Fatalf("expected parked after 2 attempts, got %+v", parked)
	}
}

func TestWorkerDropsUndecodableAndUnknown(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()
	failed := NewMemoryFailedJobStore()
	w := newTestWorker(t, q, failed, nil)

	ctx := context.Background()
	_ = q.Send(ctx, "not json", 0)
	_, body, _ := encodePayload(Payload{Kind: "mystery", CallID: "c"})
	_ = q.Send(ctx, body, 0)
	drain(t, w, q)

	if len(failed.List()) != 0 {
		t.Fatal("dropped messages should not be parked")
	}
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()
	w := NewWorker(q, logging.Default(), WithWorkerCount(2), WithReceiveWaitSeconds(1))

	done := make(chan string, 1)
	w.Handle(KindProcessCall, func(_ context.Context, p Payload) error {
		done <- p.CallID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	if err := NewScheduler(q, nil).EnqueueProcessing(ctx, "call-5"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case id := <-done:
		if id != "call-5" {
			t.Fatalf("unexpected call %s", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("job was not handled")
	}
	cancel()
	w.Wait()
}

func TestSchedulerTranscriptFetchDelay(t *testing.T) {
	api := &stubSQS{}
	s := NewScheduler(NewSQSQueue(api, "url"), DefaultPolicies())

	if err := s.ScheduleTranscriptFetch(context.Background(), "call-6", 2); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got := api.sent[0].DelaySeconds; got != 20 {
		t.Fatalf("delay = %d, want 20", got)
	}
	if err := s.EnqueueProcessing(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank call id")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
