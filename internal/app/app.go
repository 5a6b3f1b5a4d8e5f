// Package app builds the long-lived services a crawl run needs from Config,
// acting as the dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/api"
	"github.com/JakeFAU/review-crawler/internal/clock/system"
	"github.com/JakeFAU/review-crawler/internal/config"
	"github.com/JakeFAU/review-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/review-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/review-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/review-crawler/internal/fetcher/relay"
	"github.com/JakeFAU/review-crawler/internal/hash/sha256"
	"github.com/JakeFAU/review-crawler/internal/id/uuid"
	"github.com/JakeFAU/review-crawler/internal/job"
	"github.com/JakeFAU/review-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/review-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/review-crawler/internal/storage/gcs"
	"github.com/JakeFAU/review-crawler/internal/storage/local"
	"github.com/JakeFAU/review-crawler/internal/storage/postgres"
)

// App holds the shared services for one CLI invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runner   *job.Runner
	headless *headlessfetcher.Provider
	store    *postgres.Store
	bucket   *gcs.BlobStore
	topic    *pubsub.Publisher
}

// Options overrides collaborators that are otherwise built from Config.
type Options struct {
	IDs      crawler.IDGenerator
	Sessions crawler.SessionProvider
}

// New builds every service cfg enables and fails fast on the first one that
// cannot be initialized. Whatever was already opened is closed on failure.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	l := a.logger
	l.Info("initializing application services")

	sessions := opts.Sessions
	if sessions == nil {
		var err error
		if sessions, err = a.sessionProvider(); err != nil {
			return err
		}
	}

	deps := job.Deps{
		Sessions: sessions,
		Limiter:  ratelimit.New(ratelimit.Config{RPS: a.cfg.Crawler.RequestsPerSecond}),
		Hasher:   sha256.New(),
		Clock:    system.New(),
		Logger:   l.Named("job"),
	}

	if a.cfg.DB.DSN != "" {
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		a.store = store
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		l.Info("mirroring records to postgres", zap.String("table", a.cfg.DB.Table))
		deps.Mirror = func(output string) crawler.Table { return store.Table(output) }
		deps.Ledger = store
	}

	switch {
	case a.cfg.Storage.GCSBucket != "":
		bucket, err := gcs.Connect(ctx, gcs.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		}, l.Named("gcs"))
		if err != nil {
			return fmt.Errorf("init gcs: %w", err)
		}
		a.bucket = bucket
		deps.Archiver = bucket
	case a.cfg.Storage.ArchiveDir != "":
		dir, err := local.New(a.cfg.Storage.ArchiveDir)
		if err != nil {
			return fmt.Errorf("init archive dir: %w", err)
		}
		l.Info("archiving outputs locally", zap.String("dir", a.cfg.Storage.ArchiveDir))
		deps.Archiver = dir
	}

	if a.cfg.PubSub.TopicName != "" {
		topic, err := pubsub.Connect(ctx, pubsub.Config{
			ProjectID: a.cfg.PubSub.ProjectID,
			TopicName: a.cfg.PubSub.TopicName,
		})
		if err != nil {
			return fmt.Errorf("init pubsub: %w", err)
		}
		l.Info("publishing completions", zap.String("topic", a.cfg.PubSub.TopicName))
		a.topic = topic
		deps.Publisher = topic
	}

	ids := opts.IDs
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	runID, err := ids.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	runner, err := job.New(job.Config{
		Keywords:    a.cfg.Crawler.Keywords,
		Pages:       a.cfg.Crawler.Pages,
		Location:    a.cfg.Crawler.Location,
		Concurrency: a.cfg.Crawler.Concurrency,
		MaxRetries:  a.cfg.Crawler.MaxRetries,
		BatchSize:   a.cfg.Crawler.BatchSize,
		OutputDir:   a.cfg.Crawler.OutputDir,
	}, deps, runID)
	if err != nil {
		return fmt.Errorf("init runner: %w", err)
	}
	a.runner = runner
	l.Info("application services initialized", zap.String("run_id", runID))
	return nil
}

// sessionProvider picks the fetch backend and wraps it in the relay when enabled.
func (a *App) sessionProvider() (crawler.SessionProvider, error) {
	var sessions crawler.SessionProvider
	switch a.cfg.Crawler.Fetcher {
	case config.FetcherHeadless:
		p, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.Crawler.UserAgent,
			NavigationTimeout: a.cfg.Headless.NavTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.headless = p
		sessions = p
	default:
		sessions = collyfetcher.New(collyfetcher.Config{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.Crawler.RequestTimeout,
		})
	}
	a.logger.Info("using fetcher", zap.String("fetcher", a.cfg.Crawler.Fetcher))

	if !a.cfg.Relay.Enabled {
		return sessions, nil
	}
	wrapped, err := relay.New(sessions, relay.Config{
		APIKey:   a.cfg.Relay.APIKey,
		Endpoint: a.cfg.Relay.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init relay: %w", err)
	}
	a.logger.Info("routing fetches through relay", zap.String("endpoint", a.cfg.Relay.Endpoint))
	return wrapped, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Runner returns the job runner for this invocation.
func (a *App) Runner() *job.Runner {
	return a.runner
}

// ServeMetrics starts the health/metrics/status listener in the background
// when metrics.addr is configured. It stops when ctx is canceled.
func (a *App) ServeMetrics(ctx context.Context) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}
	srv := api.NewServer(a.runner, a.logger.Named("api"))
	go func() {
		a.logger.Info("metrics server started", zap.String("addr", addr))
		if err := srv.Serve(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close shuts down every service that was opened.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.topic != nil {
		if err := a.topic.Close(); err != nil {
			a.logger.Warn("closing pubsub client failed", zap.Error(err))
		}
	}
	if a.bucket != nil {
		if err := a.bucket.Close(); err != nil {
			a.logger.Warn("closing gcs client failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.headless != nil {
		a.headless.Close()
	}
}
