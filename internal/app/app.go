// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/planetbun/scanova/internal/api"
	"github.com/planetbun/scanova/internal/audit"
	"github.com/planetbun/scanova/internal/cleanup"
	"github.com/planetbun/scanova/internal/clock/system"
	"github.com/planetbun/scanova/internal/config"
	"github.com/planetbun/scanova/internal/crawler"
	"github.com/planetbun/scanova/internal/joblog"
	"github.com/planetbun/scanova/internal/kv"
	kvmemory "github.com/planetbun/scanova/internal/kv/memory"
	kvpostgres "github.com/planetbun/scanova/internal/kv/postgres"
	"github.com/planetbun/scanova/internal/lease"
	"github.com/planetbun/scanova/internal/lighthouse"
	"github.com/planetbun/scanova/internal/logging"
	"github.com/planetbun/scanova/internal/metrics"
	notifynoop "github.com/planetbun/scanova/internal/notify/noop"
	notifypubsub "github.com/planetbun/scanova/internal/notify/pubsub"
	"github.com/planetbun/scanova/internal/orchestrator"
	"github.com/planetbun/scanova/internal/pipeline"
	storagegcs "github.com/planetbun/scanova/internal/storage/gcs"
	storagelocal "github.com/planetbun/scanova/internal/storage/local"
	storagememory "github.com/planetbun/scanova/internal/storage/memory"
	storagenoop "github.com/planetbun/scanova/internal/storage/noop"
)

// App holds the shared, long-lived services of the audit service. It is
// initialized once at startup and torn down by Close.
type App struct {
	Logger       *zap.Logger
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server

	hub     *joblog.Hub
	closers []func(context.Context) error
}

// New builds the full service graph from configuration. It fails fast if any
// critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{Logger: logger, Config: cfg}

	if err := os.MkdirAll(cfg.Audit.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	store, err := a.buildKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := a.buildStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	notifier, err := a.buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clk := system.New()
	leases := lease.NewManager(store, clk, lease.Config{
		LeaseTTL:  cfg.Audit.LeaseTTL(),
		ResultTTL: cfg.Audit.ResultTTL(),
		ErrorTTL:  cfg.Audit.ErrorTTL(),
	})

	var renderer crawler.Renderer
	if cfg.Crawler.HeadlessFallback {
		r, err := crawler.NewChromedpRenderer(
			cfg.Crawler.UserAgent,
			time.Duration(cfg.Crawler.HeadlessTimeoutSeconds)*time.Second,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("start headless renderer: %w", err)
		}
		renderer = r
		a.closers = append(a.closers, func(context.Context) error {
			r.Close()
			return nil
		})
	}
	discoverer := crawler.NewCollyCrawler(crawler.Config{
		MaxPages:    cfg.Audit.MaxPages,
		MaxDepth:    cfg.Crawler.MaxDepth,
		UserAgent:   cfg.Crawler.UserAgent,
		Delay:       time.Duration(cfg.Crawler.DelayMs) * time.Millisecond,
		Parallelism: cfg.Crawler.Parallelism,
	}, renderer, logger)

	runner := lighthouse.NewCLIRunner(lighthouse.Config{
		Binary:      cfg.Lighthouse.Binary,
		WorkDir:     cfg.Audit.WorkDir,
		MaxWaitMs:   cfg.Lighthouse.MaxWaitMs,
		ChromeFlags: cfg.Lighthouse.ChromeFlags,
	}, logger)

	eventSink, err := joblog.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("register job event metrics: %w", err)
	}
	a.hub = joblog.NewHub(logger, joblog.NewLogSink(logger), eventSink)
	pipe := pipeline.New(runner, a.hub, logger)
	cleaner := cleanup.New(cfg.Audit.WorkDir, logger)

	a.Orchestrator = orchestrator.New(
		leases,
		discoverer,
		pipe,
		blobs,
		notifier,
		cleaner,
		clk,
		a.hub,
		orchestrator.Config{
			MaxPages:         cfg.Audit.MaxPages,
			WorkDir:          cfg.Audit.WorkDir,
			ReportPathPrefix: cfg.Audit.ReportPrefix,
		},
		logger,
	)
	a.Server = api.NewServer(a.Orchestrator, logger)

	logger.Info("application services initialized",
		zap.String("kv_provider", cfg.KV.Provider),
		zap.String("storage_provider", cfg.Storage.Provider),
		zap.Bool("pubsub_enabled", cfg.PubSub.Enabled),
	)
	return a, nil
}

func (a *App) buildKV(ctx context.Context, cfg config.Config) (kv.Store, error) {
	switch cfg.KV.Provider {
	case "postgres":
		a.Logger.Info("using postgres kv store", zap.String("table", cfg.KV.Table))
		store, err := kvpostgres.NewStore(ctx, kvpostgres.Config{
			DSN:      cfg.KV.DSN,
			Table:    cfg.KV.Table,
			MaxConns: int32(cfg.KV.MaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres kv store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		return store, nil
	case "memory":
		a.Logger.Info("using in-memory kv store; leases do not survive restarts")
		return kvmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown kv provider: %s", cfg.KV.Provider)
	}
}

func (a *App) buildStorage(ctx context.Context, cfg config.Config) (audit.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		a.Logger.Info("using gcs blob store", zap.String("bucket", cfg.Storage.GCSBucket))
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			return client.Close()
		})
		return storagegcs.New(client, storagegcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		a.Logger.Info("using local blob store", zap.String("base_dir", cfg.Storage.BaseDir))
		return storagelocal.New(storagelocal.Config{BaseDir: cfg.Storage.BaseDir})
	case "memory":
		return storagememory.NewBlobStore(), nil
	case "noop":
		a.Logger.Info("using no-op blob store; reports will not be uploaded")
		return storagenoop.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func (a *App) buildNotifier(ctx context.Context, cfg config.Config) (audit.Notifier, error) {
	if !cfg.PubSub.Enabled {
		a.Logger.Info("pubsub disabled; notifications will be discarded")
		return notifynoop.NewNotifier(), nil
	}
	a.Logger.Info("using pubsub notifier",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	a.closers = append(a.closers, func(context.Context) error {
		topic.Stop()
		return client.Close()
	})
	return notifypubsub.New(topic), nil
}

// Close drains in-flight jobs and tears down all services.
func (a *App) Close(ctx context.Context) {
	a.Logger.Info("shutting down application services")
	a.Orchestrator.Wait()
	if err := a.hub.Close(ctx); err != nil {
		a.Logger.Warn("job log hub close failed", zap.Error(err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("service shutdown failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
