// Package main wires together the crawl sync service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seekforge/crawlsync/internal/api"
	"github.com/seekforge/crawlsync/internal/archive"
	"github.com/seekforge/crawlsync/internal/clock/system"
	"github.com/seekforge/crawlsync/internal/config"
	"github.com/seekforge/crawlsync/internal/firecrawl"
	"github.com/seekforge/crawlsync/internal/lifecycle"
	"github.com/seekforge/crawlsync/internal/logging"
	"github.com/seekforge/crawlsync/internal/metrics"
	"github.com/seekforge/crawlsync/internal/queue"
	queuememory "github.com/seekforge/crawlsync/internal/queue/memory"
	"github.com/seekforge/crawlsync/internal/store"
	storememory "github.com/seekforge/crawlsync/internal/store/memory"
	"github.com/seekforge/crawlsync/internal/store/postgres"
	"github.com/seekforge/crawlsync/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	clock := system.New()

	var repo store.RequestRepository
	if cfg.DB.DSN != "" {
		pgStore, err := postgres.NewRequestStore(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.ConnLifetime(),
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pgStore.Close()
		repo = pgStore
	} else {
		logger.Warn("db.dsn not set, using in-memory request store")
		repo = storememory.NewRequestStore()
	}

	requestQueue, chunkQueue := buildPublishers(ctx, cfg, logger)
	defer func() {
		if err := requestQueue.Close(); err != nil {
			logger.Warn("close request publisher failed", zap.Error(err))
		}
		if err := chunkQueue.Close(); err != nil {
			logger.Warn("close chunk publisher failed", zap.Error(err))
		}
	}()

	var snapshots archive.Store
	if cfg.Archive.GCSBucket != "" {
		gcs, err := archive.NewGCSStore(ctx, cfg.Archive.GCSBucket, cfg.Archive.Prefix, logger.Named("archive"))
		if err != nil {
			logger.Fatal("archive init failed", zap.Error(err))
		}
		snapshots = gcs
	} else {
		logger.Warn("archive.gcs_bucket not set, page snapshots disabled")
		snapshots = archive.NoOpStore{}
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Warn("close archive store failed", zap.Error(err))
		}
	}()

	provider := firecrawl.New(firecrawl.Config{
		BaseURL: cfg.Firecrawl.BaseURL,
		APIKey:  cfg.Firecrawl.APIKey,
		HTTPClient: &http.Client{
			Timeout: cfg.FirecrawlTimeout(),
		},
		Logger: logger.Named("firecrawl"),
	})

	manager := lifecycle.New(repo, requestQueue, provider, clock, logger.Named("lifecycle"))

	if cfg.Worker.Enabled {
		w := worker.New(manager, provider, snapshots, chunkQueue, clock, logger.Named("worker"))
		if err := w.Start(cfg.Worker.Schedule); err != nil {
			logger.Fatal("worker start failed", zap.Error(err))
		}
		defer w.Stop()
	}

	apiServer := api.NewServer(manager, clock, logger.Named("api"), api.Config{
		APIKey:         apiKey(cfg),
		RequestTimeout: cfg.ServerTimeout(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildPublishers returns the request and chunk publishers, backed by
// Pub/Sub when a project is configured and by in-memory queues otherwise.
func buildPublishers(ctx context.Context, cfg config.Config, logger *zap.Logger) (queue.Publisher, queue.Publisher) {
	if cfg.PubSub.ProjectID == "" {
		logger.Warn("pubsub.project_id not set, using in-memory queues")
		return queuememory.NewQueue(256), queuememory.NewQueue(1024)
	}
	requests, err := queue.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.RequestTopic, logger.Named("pubsub"))
	if err != nil {
		logger.Fatal("request topic init failed", zap.Error(err))
	}
	chunks, err := queue.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.ChunkTopic, logger.Named("pubsub"))
	if err != nil {
		logger.Fatal("chunk topic init failed", zap.Error(err))
	}
	return requests, chunks
}

func apiKey(cfg config.Config) string {
	if !cfg.Auth.Enabled {
		return ""
	}
	return cfg.Auth.APIKey
}
