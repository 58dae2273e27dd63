package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/callcrm-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	appconfig "github.com/wolfman30/callcrm-ai-platform/internal/config"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.QueueBackend != "sqs" || cfg.PipelineQueueURL == "" || cfg.DatabaseURL == "" {
		logger.Error("pipeline worker requires QUEUE_BACKEND=sqs, PIPELINE_QUEUE_URL and DATABASE_URL")
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		os.Exit(1)
	}
	defer pool.Close()
	stores := mainconfig.NewStores(pool)

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	queue, _ := mainconfig.NewQueue(cfg, awsCfg, logger)
	reconciler := calls.NewReconciler(stores.Calls, jobs.NewScheduler(queue, mainconfig.Policies(cfg)), logger.WithComponent("calls"))

	model, closeModel := mainconfig.NewLLMClient(ctx, cfg, awsCfg, logger)
	defer closeModel()

	worker := mainconfig.NewPipelineWorker(queue, mainconfig.WorkerDeps{
		Config:     cfg,
		AWS:        awsCfg,
		Stores:     stores,
		Reconciler: reconciler,
		Model:      model,
		Metrics:    pipelineMetrics,
		Logger:     logger,
	})
	worker.Start(ctx)
	logger.Info("pipeline worker started", "workers", cfg.WorkerCount, "model_configured", model != nil)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           metricsRouter(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down pipeline worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = srv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("pipeline worker stopped")
	case <-doneCtx.Done():
		logger.Error("pipeline worker shutdown timed out", "error", doneCtx.Err())
	}
}

func metricsRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}
