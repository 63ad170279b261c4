package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/internal/analytics"
	"github.com/angelmondragon/pos-backend/pkg/bigquery"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/pos-backend/pkg/pubsub"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	// closed in reverse order on the way out; close errors join the run error
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	closers = append(closers, redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	closers = append(closers, pubsubClient)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bootstrap bigquery: %w", err)
	}
	closers = append(closers, bqClient)

	subscription := pubsubClient.SalesSubscription()
	if subscription == nil {
		return errors.New("sales subscription not configured")
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return err
	}
	writer, err := analytics.NewWriter(bqClient, cfg.BigQuery.SaleLinesTable, bigquery.RetryPolicy{})
	if err != nil {
		return err
	}
	consumer, err := analytics.NewConsumer(subscription, writer, manager, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	return consumer.Run(ctx)
}
