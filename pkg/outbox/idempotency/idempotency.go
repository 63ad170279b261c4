// Package idempotency records which consumer already handled which unit of
// work. Claims live in Redis and expire after the manager's TTL.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/redis"
)

const scopePrefix = "evt:processed:"

var ErrInvalidKey = errors.New("idempotency: consumer and id are required")

type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager accepts a zero ttl, which keeps claims forever.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It reports true when a
// previous claim already exists.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, ErrInvalidKey
	}
	return m.CheckAndMark(ctx, consumer, eventID.String())
}

// CheckAndMark is CheckAndMarkProcessed for natural keys such as
// product:location:day.
func (m *Manager) CheckAndMark(ctx context.Context, consumer, id string) (bool, error) {
	key, err := m.key(consumer, id)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Delete drops the claim on eventID so a redelivery is processed again.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return ErrInvalidKey
	}
	return m.Release(ctx, consumer, eventID.String())
}

func (m *Manager) Release(ctx context.Context, consumer, id string) error {
	key, err := m.key(consumer, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, id string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	id = strings.TrimSpace(id)
	if consumer == "" || id == "" {
		return "", ErrInvalidKey
	}
	return m.store.IdempotencyKey(scopePrefix+consumer, id), nil
}
