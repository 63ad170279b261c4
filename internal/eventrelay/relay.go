// Package eventrelay moves committed outbox rows onto Pub/Sub topics.
package eventrelay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond

	outcomePublished    = "published"
	outcomeRetried      = "retried"
	outcomeDeadLettered = "dead_lettered"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	DeadLetterTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Sink delivers one message to a topic and returns the server message id.
type Sink interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type outcomeRecorder interface {
	Record(eventType, outcome string)
}

type Params struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Outbox   outboxRepository
	DLQ      dlqRepository
	Registry resolver
	Sink     Sink
	Metrics  outcomeRecorder
}

// Relay polls unpublished rows, publishes them and marks the outcome in the
// same transaction that locked the batch.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	outbox      outboxRepository
	dlq         dlqRepository
	registry    resolver
	sink        Sink
	metrics     outcomeRecorder
	batchSize   int
	maxAttempts int
	interval    time.Duration
	jitter      *rand.Rand
}

func New(params Params) (*Relay, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Sink == nil:
		return nil, errors.New("pubsub sink is required")
	}

	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := time.Duration(params.Config.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := params.Config.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	return &Relay{
		logg:        logg,
		db:          params.DB,
		outbox:      params.Outbox,
		dlq:         params.DLQ,
		registry:    params.Registry,
		sink:        params.Sink,
		metrics:     params.Metrics,
		batchSize:   batch,
		maxAttempts: attempts,
		interval:    interval,
		jitter:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run drains the outbox until ctx is canceled. Errors back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	backoff := r.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		drained, err := r.Drain(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox relay batch failed", err)
			backoff = nextBackoff(backoff, r.interval, maxBackoff)
			if err := sleep(ctx, r.withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = r.interval
		if drained > 0 {
			continue
		}
		if err := sleep(ctx, r.withJitter(r.interval)); err != nil {
			return err
		}
	}
}

func (r *Relay) ready(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// Drain handles one batch and reports how many rows it looked at.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var seen int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.outbox.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		seen = len(events)
		for _, event := range events {
			if err := r.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return seen, err
}

// dispatch only returns an error when a row's outcome could not be persisted.
func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"aggregate_type": event.AggregateType,
	}

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUnresolvable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	publishErr := r.publish(ctx, event, resolved)
	if publishErr == nil {
		if err := r.outbox.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.record(event, outcomePublished)
		r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(publishErr, &nonRetryable) {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, publishErr, fields)
	}
	if event.AttemptCount+1 >= r.maxAttempts {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", publishErr), fields)
	}

	fields["attempt_count"] = event.AttemptCount + 1
	warnCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", publishErr.Error())
	r.logg.Warn(warnCtx, "outbox publish failed, will retry")
	if err := r.outbox.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	r.record(event, outcomeRetried)
	return nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err := r.sink.Publish(publishCtx, resolved.Descriptor.Topic, msg)
	return err
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	warnCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", cause.Error())
	r.logg.Warn(warnCtx, "outbox event dead-lettered")

	if err := r.dlq.DeadLetterTx(tx, event, reason, cause); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.outbox.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	r.record(event, outcomeDeadLettered)
	return nil
}

func (r *Relay) record(event models.OutboxEvent, outcome string) {
	if r.metrics != nil {
		r.metrics.Record(string(event.EventType), outcome)
	}
}

func (r *Relay) withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(r.jitter.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < max {
		return next
	}
	return max
}
