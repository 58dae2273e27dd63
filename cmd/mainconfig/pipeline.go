package mainconfig

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/wolfman30/callcrm-ai-platform/internal/assignee"
	"github.com/wolfman30/callcrm-ai-platform/internal/brief"
	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	appconfig "github.com/wolfman30/callcrm-ai-platform/internal/config"
	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
	"github.com/wolfman30/callcrm-ai-platform/internal/followups"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/leads"
	"github.com/wolfman30/callcrm-ai-platform/internal/llm"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/internal/pipeline"
	"github.com/wolfman30/callcrm-ai-platform/internal/provider"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// Stores groups the persistence backends shared by the API and the pipeline worker.
type Stores struct {
	Calls     calls.Repository
	Leads     leads.Repository
	Followups followups.Store
	Assignee  *assignee.Resolver
}

// ConnectPostgres returns nil when url is empty or the database is unreachable.
func ConnectPostgres(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// NewStores uses Postgres when pool is set and process-local memory otherwise.
func NewStores(pool *pgxpool.Pool) Stores {
	if pool == nil {
		return Stores{
			Calls:     calls.NewInMemoryRepository(),
			Leads:     leads.NewInMemoryRepository(),
			Followups: followups.NewMemoryStore(),
			Assignee:  assignee.NewResolver(nil),
		}
	}
	return Stores{
		Calls:     calls.NewPostgresRepository(pool),
		Leads:     leads.NewPostgresRepository(pool),
		Followups: followups.NewPostgresStore(pool),
		Assignee:  assignee.NewResolver(stdlib.OpenDBFromPool(pool)),
	}
}

// NewQueue returns the SQS queue when configured, otherwise an in-process queue. The second
// return is non-nil only for the in-process queue.
func NewQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (jobs.Queue, *jobs.MemoryQueue) {
	if cfg.QueueBackend == "sqs" && strings.TrimSpace(cfg.PipelineQueueURL) != "" {
		return jobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.PipelineQueueURL), nil
	}
	if cfg.QueueBackend == "sqs" {
		logger.Warn("PIPELINE_QUEUE_URL not set; falling back to in-memory queue")
	}
	mem := jobs.NewMemoryQueue(256)
	return mem, mem
}

// Policies builds per-kind retry policies from configuration.
func Policies(cfg *appconfig.Config) jobs.Policies {
	return jobs.Policies{
		jobs.KindProcessCall: {
			MaxAttempts: cfg.JobMaxAttempts,
			BaseDelay:   cfg.JobBaseDelay,
		},
		jobs.KindFetchTranscript: {
			MaxAttempts: cfg.TranscriptFetchMaxAttempts,
			BaseDelay:   cfg.TranscriptFetchBaseDelay,
		},
	}
}

// NewLLMClient returns nil when no model is configured; callers then run on the regex
// fallback. The returned close func is never nil.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, func()) {
	noop := func() {}
	if !cfg.ModelConfigured() {
		logger.Warn("no model configured; extraction and briefs use the deterministic fallback")
		return nil, noop
	}

	var bedrock llm.Client
	if cfg.LLMProvider != "gemini" && strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = llm.NewBedrockClient(NewBedrockClient(awsCfg), cfg.BedrockModelID)
	}

	var gemini llm.Client
	closeFn := noop
	if cfg.LLMProvider != "bedrock" && strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
		} else {
			gemini = client
			closeFn = func() { _ = client.Close() }
		}
	}

	switch {
	case bedrock != nil:
		return llm.NewFallbackClient(bedrock, gemini, logger), closeFn
	case gemini != nil:
		return gemini, closeFn
	default:
		return nil, closeFn
	}
}

// WorkerDeps are the collaborators the pipeline worker needs beyond its queue.
type WorkerDeps struct {
	Config     *appconfig.Config
	AWS        aws.Config
	Stores     Stores
	Reconciler *calls.Reconciler
	Model      llm.Client
	Metrics    *metrics.PipelineMetrics
	Logger     *logging.Logger
}

// NewPipelineWorker registers the call processor and the transcript fetcher on a worker
// consuming queue.
func NewPipelineWorker(queue jobs.Queue, deps WorkerDeps) *jobs.Worker {
	cfg := deps.Config
	logger := deps.Logger

	extractor := extraction.NewEngine(deps.Model, logger.WithComponent("extraction"),
		extraction.WithTimeout(cfg.LLMTimeout))
	briefs := brief.NewGenerator(deps.Model, logger.WithComponent("brief"),
		brief.WithTimeout(cfg.LLMTimeout),
		brief.WithThresholds(cfg.BriefInterestThreshold, cfg.UltraBriefInterestThreshold),
		brief.WithLocation(cfg.Location()))
	merger := leads.NewMerger(deps.Stores.Leads, logger.WithComponent("leads"),
		leads.WithAssigneeResolver(deps.Stores.Assignee),
		leads.WithNotesCap(cfg.LeadNotesCap))
	dispatcher := followups.NewDispatcher(deps.Stores.Followups, logger.WithComponent("followups"),
		followups.WithAssigneeResolver(deps.Stores.Assignee))

	processor := pipeline.NewProcessor(deps.Stores.Calls, extractor, briefs, merger, dispatcher,
		logger.WithComponent("pipeline"),
		pipeline.WithMetrics(deps.Metrics),
		pipeline.WithLeadFinder(deps.Stores.Leads))

	var failed jobs.FailedJobStore = jobs.NewMemoryFailedJobStore()
	if table := strings.TrimSpace(cfg.FailedJobsTable); table != "" {
		failed = jobs.NewDynamoFailedJobStore(dynamodb.NewFromConfig(deps.AWS), table, logger)
	}

	worker := jobs.NewWorker(queue, logger.WithComponent("jobs"),
		jobs.WithWorkerCount(cfg.WorkerCount),
		jobs.WithPolicies(Policies(cfg)),
		jobs.WithFailedJobStore(failed),
		jobs.WithMetrics(deps.Metrics),
	)
	worker.Handle(jobs.KindProcessCall, processor.Handle)
	worker.Handle(jobs.KindFetchTranscript, newFetchHandler(cfg, deps, logger))
	return worker
}

var errProviderNotConfigured = errors.New("call-detail API key not configured")

func newFetchHandler(cfg *appconfig.Config, deps WorkerDeps, logger *logging.Logger) jobs.HandlerFunc {
	client, err := provider.New(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
		Logger:  logger.WithComponent("provider"),
	})
	if err != nil {
		logger.Warn("transcript fetches will be parked", "error", err)
		return func(context.Context, jobs.Payload) error {
			return jobs.Permanent(errProviderNotConfigured)
		}
	}
	fetcher := pipeline.NewFetcher(deps.Stores.Calls, client, deps.Reconciler, logger.WithComponent("fetcher"))
	return fetcher.Handle
}
