package main

import (
	"context"
	"errors"

	"clipforge/internal/bootstrap"
	"clipforge/internal/config"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/pkg/shutdown"
	"clipforge/internal/storage"
	"clipforge/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := bootstrap.NewLogger(cfg, "clipforge-worker")
	log.Info("starting ClipForge worker",
		"store", cfg.StoreBackend,
		"queue", cfg.QueueBackend,
		"storage", cfg.StorageProvider,
		"work_dir", cfg.WorkDir,
	)
	if cfg.OpenAIAPIKey == "" && cfg.ElevenLabsAPIKey == "" {
		log.Warn("no narration provider configured, every job will fail at narration")
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, cfg.ShutdownTimeout)

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.LogFatal("failed to open job store", err)
	}
	shutdownMgr.Register("store", func(ctx context.Context) error {
		return store.Close()
	})

	q, err := bootstrap.OpenQueue(ctx, cfg, store, log)
	if err != nil {
		log.LogFatal("failed to open job queue", err)
	}
	shutdownMgr.Register("queue", func(ctx context.Context) error {
		return q.Close()
	})

	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	proc, err := worker.NewProcessor(ctx, cfg, store, sp, log)
	if err != nil {
		log.LogFatal("failed to build processor", err)
	}

	cleanup, err := worker.NewCleanupScheduler(store, cfg.JobRetentionDays, cfg.CleanupSchedule, log)
	if err != nil {
		log.LogFatal("failed to schedule job cleanup", err)
	}
	cleanup.Start()
	shutdownMgr.Register("cleanup-cron", func(ctx context.Context) error {
		select {
		case <-cleanup.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	// The loop stops taking jobs as soon as shutdown begins; a job cut short
	// is requeued by the processor.
	runCtx := shutdownMgr.Context()
	loopDone := make(chan struct{})
	shutdownMgr.Register("worker-loop", func(ctx context.Context) error {
		select {
		case <-loopDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		defer close(loopDone)
		err := worker.Run(runCtx, worker.Deps{
			Jobs:      store,
			Queue:     q,
			Processor: proc,
			Log:       log,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker loop stopped", "error", err.Error())
			go shutdownMgr.Shutdown()
		}
	}()

	shutdownMgr.Wait()
}
