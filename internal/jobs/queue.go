package jobs

import (
	"context"
	"time"
)

// Queue is the transport for background jobs.
type Queue interface {
	Send(ctx context.Context, body string, delay time.Duration) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}
