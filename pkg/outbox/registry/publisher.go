// Package registry maps outbox event types to Pub/Sub topics and payload
// decoders.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

// EventDescriptor is where an event type is published and which aggregate
// it must belong to.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	// Payload holds the decoded value type, e.g. payloads.SaleCompletedEvent.
	Payload any
}

// EventRegistry is the publisher side of the event contract.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NonRetryableError marks rows that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	sales := strings.TrimSpace(cfg.SalesTopic)
	inventory := strings.TrimSpace(cfg.InventoryTopic)
	if sales == "" || inventory == "" {
		return nil, errors.New("sales and inventory topics are required")
	}

	r := &EventRegistry{
		routes: map[enums.OutboxEventType]EventDescriptor{
			enums.EventSaleCompleted:    {EventType: enums.EventSaleCompleted, AggregateType: enums.AggregateSale, Topic: sales},
			enums.EventSaleVoided:       {EventType: enums.EventSaleVoided, AggregateType: enums.AggregateSale, Topic: sales},
			enums.EventStockAdjusted:    {EventType: enums.EventStockAdjusted, AggregateType: enums.AggregateStockRecord, Topic: inventory},
			enums.EventLowStockDetected: {EventType: enums.EventLowStockDetected, AggregateType: enums.AggregateStockRecord, Topic: inventory},
		},
		decoders: NewDecoderRegistry(),
	}
	err := multierr.Combine(
		r.decoders.Register(enums.EventSaleCompleted, 1, JSONDecoder(func(p payloads.SaleCompletedEvent) error {
			return requireID("sale_id", p.SaleID)
		})),
		r.decoders.Register(enums.EventSaleVoided, 1, JSONDecoder(func(p payloads.SaleVoidedEvent) error {
			return requireID("sale_id", p.SaleID)
		})),
		r.decoders.Register(enums.EventStockAdjusted, 1, JSONDecoder(func(p payloads.StockAdjustedEvent) error {
			return requireID("product_id", p.ProductID)
		})),
		r.decoders.Register(enums.EventLowStockDetected, 1, JSONDecoder(func(p payloads.LowStockDetectedEvent) error {
			return requireID("product_id", p.ProductID)
		})),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func requireID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%s missing", field)
	}
	return nil
}

// Resolve checks a row against its route and decodes the payload. Every
// failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("no route for event type %q", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("aggregate_id missing"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s envelope: %w", event.EventType, err))
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s@v%d payload: %w", event.EventType, envelope.Version, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
