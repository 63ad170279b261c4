package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/internal/eventrelay"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/migrate"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/registry"
	"github.com/angelmondragon/pos-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	requeue := flag.String("requeue", "", "comma separated event ids to move from the DLQ back to the outbox, then exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logg, *requeue); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, requeue string) error {
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

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	dlq := outbox.NewDLQRepository(dbClient.DB())
	if requeue != "" {
		return requeueEvents(ctx, logg, dlq, requeue)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, false, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()
	sink := pubsub.NewTopicSink(pubsubClient)
	defer sink.Stop()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	relay, err := eventrelay.New(eventrelay.Params{
		Config:   cfg.Outbox,
		Logger:   logg,
		DB:       dbClient,
		Outbox:   outbox.NewRepository(dbClient.DB()),
		DLQ:      dlq,
		Registry: eventRegistry,
		Sink:     sink,
		Metrics:  metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("outbox relay: %w", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	err = relay.Run(ctx)
	logg.Info(ctx, "outbox publisher shutting down")
	return err
}

// requeueEvents keeps going past bad ids and reports every failure at the end.
func requeueEvents(ctx context.Context, logg *logger.Logger, dlq *outbox.DLQRepository, ids string) error {
	var errs error
	for _, raw := range strings.Split(ids, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		eventID, err := uuid.Parse(raw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event id %q: %w", raw, err))
			continue
		}
		if err := dlq.Requeue(ctx, eventID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("requeue %s: %w", eventID, err))
			continue
		}
		logg.Info(logg.WithField(ctx, "event_id", eventID.String()), "dead-lettered event requeued")
	}
	return errs
}
