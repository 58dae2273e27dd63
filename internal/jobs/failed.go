package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

const failedJobTTL = 30 * 24 * time.Hour

// FailedJob is a job that exhausted its attempt budget.
type FailedJob struct {
	JobID     string `dynamodbav:"jobId" json:"job_id"`
	Kind      Kind   `dynamodbav:"kind" json:"kind"`
	CallID    string `dynamodbav:"callId" json:"call_id"`
	Attempts  int    `dynamodbav:"attempts" json:"attempts"`
	LastError string `dynamodbav:"lastError" json:"last_error"`
	Payload   string `dynamodbav:"payload" json:"payload"`
	FailedAt  string `dynamodbav:"failedAt" json:"failed_at"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// FailedJobStore keeps parked jobs for manual inspection or replay.
type FailedJobStore interface {
	Park(ctx context.Context, job FailedJob) error
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoFailedJobStore parks jobs in a DynamoDB table keyed by jobId.
type DynamoFailedJobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

func NewDynamoFailedJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoFailedJobStore {
	if client == nil {
		panic("jobs: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("jobs: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoFailedJobStore{client: client, tableName: tableName, logger: logger}
}

func (s *DynamoFailedJobStore) Park(ctx context.Context, job FailedJob) error {
	if job.JobID == "" {
		return errors.New("jobs: failed job id required")
	}
	now := time.Now().UTC()
	if job.FailedAt == "" {
		job.FailedAt = now.Format(time.RFC3339Nano)
	}
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(failedJobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("jobs: failed to marshal failed job: %w", err)
	}
	// A job parked twice (redelivery after a lost delete) overwrites the earlier entry.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("jobs: failed to park job: %w", err)
	}
	s.logger.Warn("job parked", "job_id", job.JobID, "kind", job.Kind, "call_id", job.CallID, "attempts", job.Attempts)
	return nil
}

// MemoryFailedJobStore keeps parked jobs in process memory.
type MemoryFailedJobStore struct {
	mu   sync.Mutex
	jobs []FailedJob
}

func NewMemoryFailedJobStore() *MemoryFailedJobStore {
	return &MemoryFailedJobStore{}
}

func (s *MemoryFailedJobStore) Park(_ context.Context, job FailedJob) error {
	if job.FailedAt == "" {
		job.FailedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *MemoryFailedJobStore) List() []FailedJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FailedJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}
