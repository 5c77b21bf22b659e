package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"clipforge/internal/bootstrap"
	"clipforge/internal/config"
	"clipforge/internal/httpapi"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/pkg/shutdown"
	"clipforge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := bootstrap.NewLogger(cfg, "clipforge-api")
	log.Info("starting ClipForge API",
		"store", cfg.StoreBackend,
		"queue", cfg.QueueBackend,
		"storage", cfg.StorageProvider,
	)

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

	log.Info("initializing storage provider")
	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	router := httpapi.NewRouter(httpapi.Deps{
		Store:           store,
		Queue:           q,
		SP:              sp,
		Log:             log,
		CORSOrigins:     cfg.CORSOrigins,
		RequestTimeout:  cfg.RequestTimeout,
		MaxScriptLength: cfg.MaxScriptLength,
		ImageCount:      cfg.ImageCount,
	})

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "error", err.Error())
			shutdownMgr.Shutdown()
			os.Exit(1)
		}
	}()

	shutdownMgr.Wait()
}
