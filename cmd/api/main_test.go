package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/wolfman30/callcrm-ai-platform/cmd/mainconfig"
	appconfig "github.com/wolfman30/callcrm-ai-platform/internal/config"
	"github.com/wolfman30/callcrm-ai-platform/internal/events"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

func TestSetupMetricsExposesWebhookCounters(t *testing.T) {
	registry, handler := setupMetrics()
	m := metrics.NewWebhookMetrics(registry)
	m.ObserveEvent("ended", "accepted")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "callcrm_webhook_events_total") {
		t.Fatalf("expected webhook counter to be exported")
	}
}

func TestConnectPostgresEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := mainconfig.ConnectPostgres(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestSetupDedupDefaultsToMemory(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{DedupBackend: "postgres", DedupTTL: time.Hour, DedupMaxEntries: 10}

	dedup, client := setupDedup(cfg, nil, logger)
	if client != nil {
		t.Fatalf("expected no redis client")
	}
	if _, ok := dedup.(*events.MemoryDeduplicator); !ok {
		t.Fatalf("expected memory dedup without a database, got %T", dedup)
	}
}

func TestSetupDedupRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.New("error")
	cfg := &appconfig.Config{DedupBackend: "redis", RedisAddr: mr.Addr(), DedupTTL: time.Hour}

	dedup, client := setupDedup(cfg, nil, logger)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer func() { _ = client.Close() }()

	first, err := dedup.MarkSeen(context.Background(), "evt-1")
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v %v", first, err)
	}
	second, err := dedup.MarkSeen(context.Background(), "evt-1")
	if err != nil || second {
		t.Fatalf("expected second claim to lose, got %v %v", second, err)
	}
}

func TestSetupInlineWorkerDisabled(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{QueueBackend: "sqs"}

	worker, closeModel := setupInlineWorker(context.Background(), cfg, aws.Config{}, nil, mainconfig.WorkerDeps{Logger: logger})
	defer closeModel()
	if worker != nil {
		t.Fatalf("expected no worker when the memory queue is disabled")
	}
}

func TestSetupInlineWorkerStartsAndStops(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		QueueBackend:               "memory",
		WorkerCount:                1,
		LLMProvider:                "none",
		JobMaxAttempts:             3,
		TranscriptFetchMaxAttempts: 2,
	}
	memoryQueue := jobs.NewMemoryQueue(2)
	defer memoryQueue.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker, closeModel := setupInlineWorker(ctx, cfg, aws.Config{}, memoryQueue, mainconfig.WorkerDeps{
		Config: cfg,
		Stores: mainconfig.NewStores(nil),
		Logger: logger,
	})
	defer closeModel()
	if worker == nil {
		t.Fatalf("expected worker when the memory queue is enabled")
	}

	cancel()
	waitForInlineWorker(worker, logger)
}

func TestQueueBackendName(t *testing.T) {
	if got := queueBackendName(nil); got != "sqs" {
		t.Fatalf("expected sqs, got %s", got)
	}
	if got := queueBackendName(jobs.NewMemoryQueue(1)); got != "memory" {
		t.Fatalf("expected memory, got %s", got)
	}
}
