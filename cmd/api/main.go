package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumehaus/liveshop-backend/api"
	"github.com/lumehaus/liveshop-backend/api/routes"
	"github.com/lumehaus/liveshop-backend/internal/bags"
	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/internal/gifts"
	"github.com/lumehaus/liveshop-backend/internal/labels"
	"github.com/lumehaus/liveshop-backend/internal/scan"
	"github.com/lumehaus/liveshop-backend/internal/separation"
	"github.com/lumehaus/liveshop-backend/pkg/config"
	"github.com/lumehaus/liveshop-backend/pkg/db"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/migrate"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	notifier := changefeed.NewNotifier(redisClient, logg)

	separationService, err := separation.NewService(
		separation.NewRepository(dbClient.DB()), dbClient, outboxService, notifier, domainMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create separation service", err)
		os.Exit(1)
	}

	bagsService, err := bags.NewService(
		bags.NewRepository(dbClient.DB()), dbClient, outboxService, notifier, domainMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create bags service", err)
		os.Exit(1)
	}

	giftsEngine, err := gifts.NewEngine(
		gifts.NewRepository(dbClient.DB()), dbClient, outboxService, notifier, domainMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gift engine", err)
		os.Exit(1)
	}

	labelsService, err := labels.NewService(
		labels.NewRepository(dbClient.DB()), dbClient, outboxService, notifier, domainMetrics, logg, cfg.Label)
	if err != nil {
		logg.Error(context.Background(), "failed to create labels service", err)
		os.Exit(1)
	}

	scanService, err := scan.NewService(
		scan.NewRepository(dbClient.DB()), separationService, scan.NewTrail(cfg.Scan.TrailSize), domainMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scan service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(cfg, logg, dbClient, redisClient,
		separationService, bagsService, giftsEngine, labelsService, scanService)
	server := api.NewServer(cfg, router)

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
