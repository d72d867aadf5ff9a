// Package main wires together the cityfeed service binary.
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

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/vanadzor/cityfeed/internal/api"
	"github.com/vanadzor/cityfeed/internal/clock/system"
	"github.com/vanadzor/cityfeed/internal/config"
	collyfetcher "github.com/vanadzor/cityfeed/internal/fetcher/colly"
	headlessfetcher "github.com/vanadzor/cityfeed/internal/fetcher/headless"
	"github.com/vanadzor/cityfeed/internal/logging"
	"github.com/vanadzor/cityfeed/internal/news"
	memorypublisher "github.com/vanadzor/cityfeed/internal/publisher/memory"
	pubsubpublisher "github.com/vanadzor/cityfeed/internal/publisher/pubsub"
	"github.com/vanadzor/cityfeed/internal/sources"
	gcsstorage "github.com/vanadzor/cityfeed/internal/storage/gcs"
	memorystorage "github.com/vanadzor/cityfeed/internal/storage/memory"
	"github.com/vanadzor/cityfeed/internal/storage/postgres"
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

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("cityfeed exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	contentStore, closeContent, err := buildContentStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeContent()

	blobStore, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Accept:    cfg.HTTP.Accept,
		Timeout:   cfg.FetchTimeout(),
	})

	var renderer news.Fetcher
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			renderer = headless
			defer headless.Close()
		}
	}

	registry := sources.New(cfg.Sources)
	media := news.NewMediaResolver(fetcher, blobStore, logger.Named("media"))
	ingestor := news.NewIngestor(
		registry.All(),
		fetcher,
		renderer,
		contentStore,
		media,
		publisher,
		system.New(),
		news.IngestorConfig{Topic: cfg.Ingest.Topic},
		logger.Named("ingest"),
	)
	scheduler := news.NewScheduler(ingestor, cfg.IngestInterval(), logger.Named("scheduler"))

	apiServer := api.NewServer(contentStore, blobStore, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("ingestion scheduler started",
			zap.Duration("interval", cfg.IngestInterval()),
			zap.Int("sources", len(registry.All())),
		)
		scheduler.Run(ctx)
	}()

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
	return nil
}

func buildContentStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (news.ContentStore, func(), error) {
	switch cfg.DB.Provider {
	case "postgres":
		logger.Info("using postgres content store")
		store, err := postgres.NewContentStore(ctx, postgres.ContentStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres content store: %w", err)
		}
		return store, store.Close, nil
	case "memory":
		logger.Info("using in-memory content store, articles will not survive restarts")
		return memorystorage.NewContentStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown db provider: %s", cfg.DB.Provider)
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (news.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		logger.Info("using GCS blob store", zap.String("bucket", cfg.Storage.GCSBucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, nil
	case "memory":
		logger.Info("using in-memory blob store, media will not survive restarts")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (news.Publisher, func(), error) {
	if !cfg.PubSub.Enabled {
		if cfg.Ingest.Topic == "" {
			return nil, func() {}, nil
		}
		logger.Info("pubsub disabled, recording run summaries in memory",
			zap.String("topic", cfg.Ingest.Topic),
		)
		return memorypublisher.New(), func() {}, nil
	}
	logger.Info("using pubsub run-summary publisher",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.Ingest.Topic),
	)
	client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	publisher := pubsubpublisher.New(client)
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher failed", zap.Error(err))
		}
	}
	return publisher, closeFn, nil
}
