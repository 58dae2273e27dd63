package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a Queue backed by an in-memory buffered channel. Delayed sends are held on
// timers; anything queued or pending is lost when the process exits.
type MemoryQueue struct {
	ch      chan Message
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	pending map[*time.Timer]struct{}
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ch:      make(chan Message, buffer),
		done:    make(chan struct{}),
		pending: make(map[*time.Timer]struct{}),
	}
}

// Send enqueues a payload, after delay when positive, or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, body string, delay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	msg := Message{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}
	if delay > 0 {
		q.mu.Lock()
		var timer *time.Timer
		timer = time.AfterFunc(delay, func() {
			q.mu.Lock()
			delete(q.pending, timer)
			q.mu.Unlock()
			select {
			case q.ch <- msg:
			case <-q.done:
			}
		})
		q.pending[timer] = struct{}{}
		q.mu.Unlock()
		return nil
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return context.Canceled
	}
}

// Receive blocks until a message is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case msg := <-q.ch:
		return q.collect(msg, maxMessages), nil
	}
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(_ context.Context, _ string) error {
	return nil
}

// Pending reports queued plus delayed messages.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch) + len(q.pending)
}

// Close drops delayed messages and unblocks senders.
func (q *MemoryQueue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		for t := range q.pending {
			t.Stop()
		}
		q.pending = map[*time.Timer]struct{}{}
		q.mu.Unlock()
	})
}

func (q *MemoryQueue) collect(first Message, max int) []Message {
	messages := make([]Message, 0, max)
	messages = append(messages, first)
	for len(messages) < max {
		select {
		case msg := <-q.ch:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
	return messages
}
