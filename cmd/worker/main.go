package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumehaus/liveshop-backend/internal/bags"
	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/internal/labels"
	"github.com/lumehaus/liveshop-backend/pkg/config"
	"github.com/lumehaus/liveshop-backend/pkg/db"
	"github.com/lumehaus/liveshop-backend/pkg/instance"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/migrate"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/idempotency"
	"github.com/lumehaus/liveshop-backend/pkg/printer"
	"github.com/lumehaus/liveshop-backend/pkg/pubsub"
	"github.com/lumehaus/liveshop-backend/pkg/redis"
)

const labelIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	printerClient, err := printer.NewClient(cfg.Label.PrinterURL, cfg.Label.PrinterToken)
	if err != nil {
		logg.Error(context.Background(), "failed to create printer client", err)
		os.Exit(1)
	}

	idemManager, err := idempotency.NewManager(redisClient, labelIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	labelConsumer, err := labels.NewConsumer(
		pubsubClient.LabelSubscription(), printerClient, idemManager, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create label consumer", err)
		os.Exit(1)
	}

	feed, err := changefeed.NewFeed(redisClient, cfg.Changefeed, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create change feed", err)
		os.Exit(1)
	}

	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	notifier := changefeed.NewNotifier(redisClient, logg)
	bagsRepo := bags.NewRepository(dbClient.DB())
	bagsService, err := bags.NewService(bagsRepo, dbClient, outboxService, notifier, domainMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create bags service", err)
		os.Exit(1)
	}

	cartWatcher, err := bags.NewWatcher(bags.WatcherParams{
		Logger: logg,
		Feed:   feed,
		Bags:   bagsService,
		Repo:   bagsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart watcher", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		PubSub:        pubsubClient,
		LabelConsumer: labelConsumer,
		CartWatcher:   cartWatcher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
