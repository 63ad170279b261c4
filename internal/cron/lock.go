package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Unlock gives back a lease obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker hands out at most one lease at a time across every worker replica.
// A false result with a nil error means another replica holds it.
type Locker interface {
	TryLock(ctx context.Context) (Unlock, bool, error)
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock leases a key with SET NX. Each lease carries its own owner token,
// so an expired lease can never delete a newer holder's key.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TryLock(ctx context.Context) (Unlock, bool, error) {
	token := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lease %s: %w", l.key, err)
	}
	if !won {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.store.ReleaseIfOwner(ctx, l.key, token); err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		return nil
	}, true, nil
}
