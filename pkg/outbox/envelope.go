package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyPayload marks an envelope whose data field is missing or null.
var ErrEmptyPayload = errors.New("envelope data is empty")

// ActorRef identifies who caused the event. Scheduled jobs use Role "system"
// and a nil UserID.
type ActorRef struct {
	UserID     uuid.UUID  `json:"userId"`
	LocationID *uuid.UUID `json:"locationId,omitempty"`
	Role       string     `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw and fills a missing version with 1.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyPayload
	}
	if env.Version <= 0 {
		env.Version = defaultEventVersion
	}
	return env, nil
}
