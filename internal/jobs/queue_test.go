package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	ctx := context.Background()

	for _, body := range []string{"a", "b", "c"} {
		if err := q.Send(ctx, body, 0); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	msgs, err := q.Receive(ctx, 2, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Body != "a" || msgs[1].Body != "b" {
		t.Fatalf("unexpected batch %+v", msgs)
	}
	if msgs[0].ReceiptHandle == "" {
		t.Fatal("expected receipt handle")
	}
}

func TestMemoryQueueDelayedSend(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	ctx := context.Background()

	if err := q.Send(ctx, "later", 20*time.Millisecond); err != nil {
		t.Fatalf("send: %v", err)
	}
	if q.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.Pending())
	}
	msgs, err := q.Receive(ctx, 1, 2)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "later" {
		t.Fatalf("expected delayed message, got %+v", msgs)
	}
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()
	msgs, err := q.Receive(context.Background(), 1, 1)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("expected empty receive, got %v %v", msgs, err)
	}
}

func TestMemoryQueueCloseDropsDelayed(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Send(context.Background(), "x", time.Hour); err != nil {
		t.Fatalf("send: %v", err)
	}
	q.Close()
	if q.Pending() != 0 {
		t.Fatalf("pending after close = %d", q.Pending())
	}
}

type stubSQS struct {
	sent     []*sqs.SendMessageInput
	deleted  []*sqs.DeleteMessageInput
	messages []sqstypes.Message
	err      error
}

func (s *stubSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (s *stubSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.ReceiveMessageOutput{Messages: s.messages}, nil
}

func (s *stubSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	s.deleted = append(s.deleted, in)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueSendCapsDelay(t *testing.T) {
	api := &stubSQS{}
	q := NewSQSQueue(api, "https://sqs.local/queue")

	if err := q.Send(context.Background(), "body", time.Hour); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := q.Send(context.Background(), "body", 40*time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := api.sent[0].DelaySeconds; got != 900 {
		t.Fatalf("delay = %d, want 900", got)
	}
	if got := api.sent[1].DelaySeconds; got != 40 {
		t.Fatalf("delay = %d, want 40", got)
	}
	if aws.ToString(api.sent[0].QueueUrl) != "https://sqs.local/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(api.sent[0].QueueUrl))
	}
}

func TestSQSQueueReceiveAndDelete(t *testing.T) {
	api := &stubSQS{messages: []sqstypes.Message{{
		MessageId:     aws.String("id-1"),
		Body:          aws.String("payload"),
		ReceiptHandle: aws.String("rh-1"),
	}}}
	q := NewSQSQueue(api, "url")

	msgs, err := q.Receive(context.Background(), 5, 2)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "id-1" || msgs[0].ReceiptHandle != "rh-1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if err := q.Delete(context.Background(), ""); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
	if err := q.Delete(context.Background(), "rh-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.deleted) != 1 {
		t.Fatalf("expected one delete call, got %d", len(api.deleted))
	}
}

func TestSQSQueueWrapsErrors(t *testing.T) {
	api := &stubSQS{err: errors.New("throttled")}
	q := NewSQSQueue(api, "url")
	if err := q.Send(context.Background(), "b", 0); err == nil {
		t.Fatal("expected send error")
	}
	if _, err := q.Receive(context.Background(), 1, 0); err == nil {
		t.Fatal("expected receive error")
	}
}
