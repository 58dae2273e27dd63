package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// HandlerFunc executes one job. Returning an error schedules a retry unless the error is
// Permanent or the attempt budget is spent.
type HandlerFunc func(ctx context.Context, p Payload) error

// Worker consumes jobs from the queue and dispatches them by kind.
type Worker struct {
	queue    Queue
	handlers map[Kind]HandlerFunc
	policies Policies
	failed   FailedJobStore
	metrics  *metrics.PipelineMetrics
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobTimeout       time.Duration
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	defaultJobTimeout    = 2 * time.Minute
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		w.cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		w.cfg.receiveBatchSize = size
	}
}

func WithJobTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.cfg.jobTimeout = d
		}
	}
}

func WithPolicies(p Policies) WorkerOption {
	return func(w *Worker) {
		if p != nil {
			w.policies = p
		}
	}
}

func WithFailedJobStore(s FailedJobStore) WorkerOption {
	return func(w *Worker) {
		if s != nil {
			w.failed = s
		}
	}
}

func WithMetrics(m *metrics.PipelineMetrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker constructs a queue consumer. Without a failed-job store, exhausted jobs are kept in memory.
func NewWorker(queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		queue:    queue,
		handlers: make(map[Kind]HandlerFunc),
		policies: DefaultPolicies(),
		logger:   logger,
		cfg: workerConfig{
			workers:          defaultWorkerCount,
			receiveWaitSecs:  defaultWaitSeconds,
			receiveBatchSize: defaultBatchSize,
			jobTimeout:       defaultJobTimeout,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.failed == nil {
		w.failed = NewMemoryFailedJobStore()
	}
	return w
}

// Handle registers the handler for a job kind. It must be called before Start.
func (w *Worker) Handle(kind Kind, fn HandlerFunc) {
	if fn == nil {
		panic("jobs: handler cannot be nil")
	}
	w.handlers[kind] = fn
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Poll receives and handles a single batch. It returns the number of messages handled.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
	if err != nil {
		return 0, err
	}
	for _, msg := range messages {
		w.handleMessage(ctx, msg)
	}
	return len(messages), nil
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("job worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("job worker stopping", "worker_id", workerID)
			return
		default:
		}

		if _, err := w.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive jobs", "error", err, "worker_id", workerID)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	payload, err := decodePayload(msg.Body)
	if err != nil {
		w.logger.Error("failed to decode job", "error", err, "message_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	handler, ok := w.handlers[payload.Kind]
	if !ok {
		w.logger.Warn("no handler for job kind", "kind", payload.Kind, "job_id", payload.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.jobTimeout)
	err = w.invoke(jobCtx, handler, payload)
	cancel()
	if err == nil {
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	if ctx.Err() != nil {
		// Shutting down; let the queue redeliver.
		return
	}

	if w.settleFailure(ctx, payload, msg.Body, err) {
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
	}
}

func (w *Worker) invoke(ctx context.Context, handler HandlerFunc, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobs: handler panic: %v", r)
		}
	}()
	return handler(ctx, p)
}

// settleFailure re-enqueues or parks a failed job. It reports whether the original
// message may be deleted.
func (w *Worker) settleFailure(ctx context.Context, p Payload, body string, jobErr error) bool {
	policy := w.policies.For(p.Kind)
	if !IsPermanent(jobErr) && p.Attempt < policy.MaxAttempts {
		next := p
		next.Attempt++
		_, nextBody, err := encodePayload(next)
		if err == nil {
			err = w.queue.Send(ctx, nextBody, policy.Delay(next.Attempt))
		}
		if err != nil {
			w.logger.Error("failed to re-enqueue job", "error", err, "job_id", p.ID, "kind", p.Kind)
			return false
		}
		w.metrics.ObserveRetry(string(p.Kind))
		w.logger.Warn("job failed, retrying", "error", jobErr, "job_id", p.ID, "kind", p.Kind,
			"call_id", p.CallID, "next_attempt", next.Attempt)
		return true
	}

	err := w.failed.Park(ctx, FailedJob{
		JobID:     p.ID,
		Kind:      p.Kind,
		CallID:    p.CallID,
		Attempts:  p.Attempt,
		LastError: jobErr.Error(),
		Payload:   body,
	})
	if err != nil {
		w.logger.Error("failed to park job", "error", err, "job_id", p.ID, "kind", p.Kind)
		return false
	}
	w.metrics.ObserveParked(string(p.Kind))
	w.logger.Error("job exhausted attempts", "error", jobErr, "job_id", p.ID, "kind", p.Kind,
		"call_id", p.CallID, "attempts", p.Attempt)
	return true
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete job", "error", err)
	}
}
