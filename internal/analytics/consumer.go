// Package analytics streams committed sales from Pub/Sub into BigQuery.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pos-backend/pkg/outbox/registry"
)

const consumerName = "analytics"

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type lineWriter interface {
	InsertSaleLines(ctx context.Context, rows []SaleLineRow) error
}

// Consumer acks messages it handled or can never handle, and nacks the rest
// so Pub/Sub redelivers them.
type Consumer struct {
	sub      subscriber
	decoders *registry.DecoderRegistry
	writer   lineWriter
	manager  idempotencyChecker
	logg     *logger.Logger
}

func NewConsumer(sub subscriber, writer lineWriter, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if sub == nil {
		return nil, errors.New("sales subscription is required")
	}
	if writer == nil {
		return nil, errors.New("sale line writer is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	decoders := registry.NewDecoderRegistry()
	if err := decoders.Register(enums.EventSaleCompleted, 1, registry.JSONDecoder(requireSaleID)); err != nil {
		return nil, err
	}
	return &Consumer{
		sub:      sub,
		decoders: decoders,
		writer:   writer,
		manager:  manager,
		logg:     logg,
	}, nil
}

func requireSaleID(sale payloads.SaleCompletedEvent) error {
	if sale.SaleID == uuid.Nil {
		return errors.New("sale_id missing")
	}
	return nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if c.process(msgCtx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) bool {
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	}
	ctx = c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil || eventType != enums.EventSaleCompleted {
		c.logg.Info(ctx, "analytics event ignored")
		return true
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		return true
	}
	eventID, err := uuid.Parse(strings.TrimSpace(envelope.EventID))
	if err != nil {
		eventID, err = uuid.Parse(strings.TrimSpace(msg.Attributes["event_id"]))
	}
	if err != nil {
		c.logg.Warn(ctx, "analytics event without a valid event id")
		return true
	}
	ctx = c.logg.WithField(ctx, "event_id", eventID.String())

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "undecodable sale payload")
		return true
	}
	sale := decoded.(payloads.SaleCompletedEvent)

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(ctx, "event already processed")
		return true
	}

	rows := SaleLineRows(eventID.String(), envelope.OccurredAt, sale)
	if err := c.writer.InsertSaleLines(ctx, rows); err != nil {
		c.logg.Error(ctx, "sale lines insert failed", fmt.Errorf("sale %s: %w", sale.SaleID, err))
		if delErr := c.manager.Delete(ctx, consumerName, eventID); delErr != nil {
			c.logg.Error(ctx, "idempotency release failed", delErr)
		}
		return false
	}

	c.logg.Info(c.logg.WithField(ctx, "lines", len(rows)), "sale lines recorded")
	return true
}
