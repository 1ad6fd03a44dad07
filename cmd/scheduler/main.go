// The scheduler binary runs the three background engines of the system:
// the recurring maintenance scheduler, the job queue worker, and the
// scheduled post publisher. All three share one Redis connection and
// shut down together on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/postwave/postwave/pkg/config"
	"github.com/postwave/postwave/pkg/cron"
	"github.com/postwave/postwave/pkg/jobqueue"
	"github.com/postwave/postwave/pkg/logger"
	"github.com/postwave/postwave/pkg/postscheduler"
	"github.com/postwave/postwave/pkg/redis"
)

type appConfig struct {
	Log   logger.Config
	Redis redis.Config
	Cron  cron.Config
	Queue jobqueue.Config
	Posts postscheduler.Config

	QueueName       string        `env:"JOBQUEUE_NAME" envDefault:"jobs:default"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	logg := logger.FromConfig("scheduler", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer func() { _ = client.Close() }()

	// Job queue worker.
	queue := jobqueue.NewRedisQueue(client, cfg.QueueName,
		jobqueue.WithStatusTTL(cfg.Queue.StatusTTL))
	enqueuer, err := jobqueue.NewEnqueuer(queue)
	if err != nil {
		log.Fatalf("enqueuer: %v", err)
	}

	processor, err := jobqueue.NewProcessor(queue,
		jobqueue.WithPopTimeout(cfg.Queue.PopTimeout),
		jobqueue.WithJobTimeout(cfg.Queue.JobTimeout),
		jobqueue.WithErrorBackoff(cfg.Queue.ErrorBackoff),
		jobqueue.WithProcessorLogger(logg.With("component", "jobqueue")))
	if err != nil {
		log.Fatalf("processor: %v", err)
	}

	if err := processor.Register(
		jobqueue.NewCopyGenerationHandler(&templateCopyGenerator{}, &redisCopyStore{client: client}),
		jobqueue.NewImageProcessingHandler(&passthroughImagePipeline{}, &redisProductStore{client: client}),
		jobqueue.NewNotificationHandler(
			&logEmailSender{logger: logg.With("component", "email")},
			&logPushSender{logger: logg.With("component", "push")}),
		jobqueue.NewAnalyticsHandler(&redisStatsAggregator{client: client}),
	); err != nil {
		log.Fatalf("register handlers: %v", err)
	}

	// Recurring maintenance jobs.
	cronScheduler := cron.NewScheduler(cron.NewRedisResultStore(client),
		cron.WithTickInterval(cfg.Cron.TickInterval),
		cron.WithHandlerTimeout(cfg.Cron.HandlerTimeout),
		cron.WithLogger(logg.With("component", "cron")))

	maint := &maintenance{
		client:   client,
		enqueuer: enqueuer,
		logger:   logg.With("component", "maintenance"),
	}
	if err := registerMaintenanceJobs(cronScheduler, maint); err != nil {
		log.Fatalf("maintenance jobs: %v", err)
	}

	// Scheduled post publisher.
	mux := postscheduler.NewPublisherMux()
	for _, platform := range postscheduler.Platforms() {
		publisher := &dryRunPublisher{
			platform: platform,
			logger:   logg.With("component", "publisher", "platform", string(platform)),
		}
		if err := mux.Register(platform, publisher); err != nil {
			log.Fatalf("publisher for %s: %v", platform, err)
		}
	}

	notifier := postscheduler.NewChannelNotifier(256)

	postScheduler, err := postscheduler.NewScheduler(
		postscheduler.NewRedisStore(client), mux,
		postscheduler.WithNotifier(notifier),
		postscheduler.WithSweepInterval(cfg.Posts.SweepInterval),
		postscheduler.WithBatchSize(cfg.Posts.BatchSize),
		postscheduler.WithWorkers(cfg.Posts.Workers),
		postscheduler.WithPublishTimeout(cfg.Posts.PublishTimeout),
		postscheduler.WithLeaseTimeout(cfg.Posts.LeaseTimeout),
		postscheduler.WithRetryPolicy(cfg.Posts.MaxRetries, cfg.Posts.RetryBase, cfg.Posts.RetryMax),
		postscheduler.WithLogger(logg.With("component", "posts")))
	if err != nil {
		log.Fatalf("post scheduler: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(processor.Run(ctx))
	g.Go(cronScheduler.Run(ctx))
	g.Go(func() error {
		// Workers are fully stopped when Run returns, so no further
		// Notify calls can race the close.
		defer notifier.Close()
		return postScheduler.Run(ctx)()
	})
	g.Go(func() error {
		return drainEvents(ctx, notifier, logg.With("component", "events"), cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return watchRedis(ctx, redis.Healthcheck(client), logg.With("component", "redis"))
	})

	logg.Info("scheduler process started")
	if err := g.Wait(); err != nil {
		logg.Error("scheduler process exited with error", "error", err.Error())
		os.Exit(1)
	}
	logg.Info("scheduler process stopped")
}

// drainEvents logs post lifecycle events until the notifier closes.
// After shutdown begins the drain is bounded by shutdownTimeout so a
// slow consumer cannot hold the process open.
func drainEvents(ctx context.Context, notifier *postscheduler.ChannelNotifier, logg *slog.Logger, shutdownTimeout time.Duration) error {
	done := ctx.Done()
	var deadline <-chan time.Time

	for {
		select {
		case event, ok := <-notifier.Events():
			if !ok {
				if n := notifier.Dropped(); n > 0 {
					logg.Warn("lifecycle events dropped under load", "count", n)
				}
				return nil
			}
			logg.Info("post event",
				"type", string(event.Type),
				"post_id", event.Post.ID.String(),
				"platform", string(event.Post.Platform))
		case <-done:
			timer := time.NewTimer(shutdownTimeout)
			defer timer.Stop()
			deadline = timer.C
			done = nil
		case <-deadline:
			logg.Warn("event drain timed out", "timeout", shutdownTimeout.String())
			return nil
		}
	}
}

const healthcheckInterval = 30 * time.Second

// watchRedis periodically checks the Redis connection and logs failures.
// The check is advisory: the engines surface their own errors when Redis
// is down, this just makes the cause visible.
func watchRedis(ctx context.Context, check func(context.Context) error, logg *slog.Logger) error {
	ticker := time.NewTicker(healthcheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := check(ctx); err != nil {
				logg.Warn("redis healthcheck failed", "error", err.Error())
			}
		}
	}
}

// registerMaintenanceJobs wires the standing housekeeping jobs.
func registerMaintenanceJobs(s *cron.Scheduler, maint *maintenance) error {
	jobs := []struct {
		name    string
		handler cron.HandlerFunc
		opts    []cron.JobOption
	}{
		{"refresh_products", maint.RefreshProducts,
			[]cron.JobOption{cron.WithInterval(time.Hour)}},
		{"refresh_trending", maint.RefreshTrending,
			[]cron.JobOption{cron.WithInterval(30 * time.Minute)}},
		{"cleanup_old_products", maint.CleanupOldProducts,
			[]cron.JobOption{cron.WithCronExpr("0 3 * * *")}},
		{"cleanup_expired_cache", maint.CleanupExpiredCache,
			[]cron.JobOption{cron.WithCronExpr("0 4 * * *")}},
		{"check_license_expiry", maint.CheckLicenseExpiry,
			[]cron.JobOption{cron.WithInterval(time.Hour)}},
	}

	for _, j := range jobs {
		job, err := cron.NewJob(j.name, j.handler, j.opts...)
		if err != nil {
			return err
		}
		if err := s.AddJob(job); err != nil {
			return err
		}
	}
	return nil
}
