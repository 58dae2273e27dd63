package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/callcrm-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/callcrm-ai-platform/internal/api/router"
	"github.com/wolfman30/callcrm-ai-platform/internal/archive"
	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	appconfig "github.com/wolfman30/callcrm-ai-platform/internal/config"
	"github.com/wolfman30/callcrm-ai-platform/internal/events"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/leads"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/internal/webhook"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting callcrm-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"queue_backend", cfg.QueueBackend,
		"dedup_backend", cfg.DedupBackend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	stores := mainconfig.NewStores(pool)

	registry, metricsHandler := setupMetrics()
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	queue, memoryQueue := mainconfig.NewQueue(cfg, awsCfg, logger)
	scheduler := jobs.NewScheduler(queue, mainconfig.Policies(cfg))
	reconciler := calls.NewReconciler(stores.Calls, scheduler, logger.WithComponent("calls"))

	dedup, redisClient := setupDedup(cfg, pool, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	if store, ok := dedup.(*events.ProcessedStore); ok {
		go purgeProcessedEvents(ctx, store, time.Hour, logger)
	}

	hookOpts := []webhook.Option{
		webhook.WithMetrics(webhookMetrics),
		webhook.WithStatusFlags(cfg.ModelConfigured(), queueBackendName(memoryQueue)),
	}
	if store := setupArchive(cfg, awsCfg, logger); store != nil {
		hookOpts = append(hookOpts, webhook.WithArchive(store))
	}
	hook := webhook.NewHandler(cfg.WebhookSigningSecret, dedup, reconciler, logger.WithComponent("webhook"), hookOpts...)

	worker, closeModel := setupInlineWorker(ctx, cfg, awsCfg, memoryQueue, mainconfig.WorkerDeps{
		Config:     cfg,
		AWS:        awsCfg,
		Stores:     stores,
		Reconciler: reconciler,
		Metrics:    pipelineMetrics,
		Logger:     logger,
	})
	defer closeModel()

	r := router.New(&router.Config{
		Logger:           logger,
		Webhook:          hook,
		LeadsHandler:     leads.NewHandler(stores.Leads, logger.WithComponent("leads")),
		MetricsHandler:   metricsHandler,
		AdminAuthSecret:  cfg.AdminJWTSecret,
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookRateBurst: cfg.WebhookRateBurst,
		Readiness:        readinessChecks(pool, redisClient),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	hook.Wait()

	cancel()
	if worker != nil {
		waitForInlineWorker(worker, logger)
		memoryQueue.Close()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// setupDedup picks the configured event-id store. Redis and Postgres fall back to memory
// when their connection is unavailable.
func setupDedup(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (events.Deduplicator, *redis.Client) {
	switch cfg.DedupBackend {
	case "redis":
		if cfg.RedisAddr == "" {
			logger.Warn("DEDUP_BACKEND=redis but REDIS_ADDR is empty; using in-memory dedup")
			break
		}
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		return events.NewRedisDeduplicator(client, cfg.DedupTTL), client
	case "postgres":
		if pool == nil {
			logger.Warn("DEDUP_BACKEND=postgres but no database is connected; using in-memory dedup")
			break
		}
		return events.NewProcessedStore(pool, "voice", cfg.DedupTTL), nil
	}
	return events.NewMemoryDeduplicator(cfg.DedupTTL, cfg.DedupMaxEntries), nil
}

// purgeProcessedEvents drops expired dedup claims so the table stays bounded.
func purgeProcessedEvents(ctx context.Context, store *events.ProcessedStore, every time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Warn("processed events purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired processed events", "count", n)
			}
		}
	}
}

func setupArchive(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *archive.Store {
	if cfg.RawPayloadBucket == "" {
		return nil
	}
	return archive.NewStore(mainconfig.NewS3Client(awsCfg), cfg.RawPayloadBucket, logger.WithComponent("archive"))
}

// setupInlineWorker runs the pipeline in-process when jobs go through the memory queue.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, memoryQueue *jobs.MemoryQueue, deps mainconfig.WorkerDeps) (*jobs.Worker, func()) {
	if memoryQueue == nil {
		return nil, func() {}
	}
	model, closeModel := mainconfig.NewLLMClient(ctx, cfg, awsCfg, deps.Logger)
	deps.Model = model
	worker := mainconfig.NewPipelineWorker(memoryQueue, deps)
	worker.Start(ctx)
	deps.Logger.Info("inline pipeline worker started", "workers", cfg.WorkerCount)
	return worker, closeModel
}

func waitForInlineWorker(worker *jobs.Worker, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline pipeline worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("inline pipeline worker shutdown timed out")
	}
}

func queueBackendName(memoryQueue *jobs.MemoryQueue) string {
	if memoryQueue != nil {
		return "memory"
	}
	return "sqs"
}

func readinessChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
