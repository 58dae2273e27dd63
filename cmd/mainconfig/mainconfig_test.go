package mainconfig

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	appconfig "github.com/wolfman30/callcrm-ai-platform/internal/config"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/leads"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", awsCfg.Region)
	require.NotNil(t, awsCfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *awsCfg.BaseEndpoint)

	assert.True(t, NewS3Client(awsCfg).Options().UsePathStyle)
	assert.Nil(t, NewBedrockClient(awsCfg).Options().BaseEndpoint)
}

func TestPoliciesFromConfig(t *testing.T) {
	cfg := &appconfig.Config{
		JobMaxAttempts:             4,
		JobBaseDelay:               2 * time.Second,
		TranscriptFetchMaxAttempts: 7,
		TranscriptFetchBaseDelay:   15 * time.Second,
	}
	p := Policies(cfg)

	assert.Equal(t, jobs.RetryPolicy{MaxAttempts: 4, BaseDelay: 2 * time.Second}, p.For(jobs.KindProcessCall))
	assert.Equal(t, jobs.RetryPolicy{MaxAttempts: 7, BaseDelay: 15 * time.Second}, p.For(jobs.KindFetchTranscript))
}

func TestNewStoresWithoutDatabase(t *testing.T) {
	stores := NewStores(nil)

	assert.IsType(t, &calls.InMemoryRepository{}, stores.Calls)
	assert.IsType(t, &leads.InMemoryRepository{}, stores.Leads)
	owner, err := stores.Assignee.DefaultAssignee(context.Background(), "org-1", "")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestNewQueueFallsBackToMemory(t *testing.T) {
	logger := logging.New("error")

	queue, mem := NewQueue(&appconfig.Config{QueueBackend: "sqs"}, aws.Config{}, logger)
	require.NotNil(t, mem)
	assert.Same(t, mem, queue)
	mem.Close()

	queue, mem = NewQueue(&appconfig.Config{QueueBackend: "sqs", PipelineQueueURL: "http://localhost:4566/000000000000/pipeline"}, aws.Config{Region: "us-east-1"}, logger)
	assert.Nil(t, mem)
	assert.IsType(t, &jobs.SQSQueue{}, queue)
}

func TestNewLLMClientUnconfigured(t *testing.T) {
	client, closeFn := NewLLMClient(context.Background(), &appconfig.Config{LLMProvider: "none"}, aws.Config{}, logging.New("error"))
	defer closeFn()
	assert.Nil(t, client)
}
