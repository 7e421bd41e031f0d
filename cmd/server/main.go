package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"audiolevel/internal/admission"
	"audiolevel/internal/api"
	"audiolevel/internal/bus"
	"audiolevel/internal/config"
	"audiolevel/internal/janitor"
	"audiolevel/internal/models"
	"audiolevel/internal/pipeline"
	"audiolevel/internal/queue"
	"audiolevel/internal/store"
	"audiolevel/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("failed to create upload dir", "error", err.Error())
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("failed to create output dir", "error", err.Error())
		os.Exit(1)
	}

	redisStore, err := store.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to store", "error", err.Error())
		os.Exit(1)
	}
	logger.Startup("store", "connected to redis")

	p := pipeline.New(cfg.OutputDir, cfg.ProcessingTimeout(), cfg.FinalEncodeTimeout())
	q := queue.New(redisStore, p, cfg.MaxConcurrentJobs, cfg.MeanProcessingSeconds)
	adm := admission.New(cfg, redisStore, q)

	progressBus := bus.New()
	q.OnProgress = func(jobID string, percent int, stage string) {
		progressBus.Progress(jobID, percent, stage)
	}
	q.OnComplete = func(job *models.Job) {
		adm.ReleaseDiskSpace(job.FileSize)
		downloadURL := fmt.Sprintf("/upload/job/%s/download", job.JobID)
		var result any
		if job.Result != nil {
			result = job.Result
		}
		progressBus.Complete(job.JobID, downloadURL, result)
	}
	q.OnError = func(job *models.Job) {
		adm.ReleaseDiskSpace(job.FileSize)
		progressBus.Error(job.JobID, job.FailedReason, "PROCESSING_FAILED")
	}

	jan := janitor.New(cfg.UploadDir, cfg.OutputDir, cfg.RetentionDuration(), redisStore, progressBus)

	server := api.NewServer(cfg, redisStore, q, adm, progressBus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q.Start(ctx)
	jan.Start(ctx)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Startup("server", fmt.Sprintf("listening on %s", addr))
		errCh <- server.Run(addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server exited", "error", err.Error())
		}
	}

	// Reverse-order teardown: stop accepting new work (janitor, workers),
	// then release the store they both depend on.
	jan.Stop()
	q.Stop()
	if err := redisStore.Close(); err != nil {
		logger.Warn("error closing store", "error", err.Error())
	}
	logger.Info("shutdown complete")
}
