package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// ErrNoDecoder is returned for event type and version pairs nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

// Decoder turns an envelope's data field into a typed payload.
type Decoder func(data json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry is the consumer side of the event contract: each consumer
// registers only the versions it understands.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]Decoder)}
}

// Register fails on unknown event types, non-positive versions and duplicates.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) error {
	if !eventType.IsValid() {
		return fmt.Errorf("register decoder: unknown event type %q", eventType)
	}
	if version <= 0 {
		return fmt.Errorf("register decoder: %s version must be positive", eventType)
	}
	if decoder == nil {
		return fmt.Errorf("register decoder: %s@v%d decoder is nil", eventType, version)
	}
	key := decoderKey{eventType: eventType, version: version}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[key]; exists {
		return fmt.Errorf("register decoder: %s@v%d already registered", eventType, version)
	}
	r.decoders[key] = decoder
	return nil
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	return decoder(data)
}

// JSONDecoder unmarshals into T and then runs check, when given.
func JSONDecoder[T any](check func(T) error) Decoder {
	return func(data json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if check != nil {
			if err := check(payload); err != nil {
				return nil, err
			}
		}
		return payload, nil
	}
}
