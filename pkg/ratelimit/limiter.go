// Package ratelimit throttles callers with fixed-window counters kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Limiter reports whether identifier may perform one more action.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

type windowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Policy names a limit of Limit hits per Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Enabled reports whether the policy throttles anything.
func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// FixedWindow counts hits per identifier in Redis keys that expire with the window.
type FixedWindow struct {
	store  windowStore
	policy Policy
}

// NewFixedWindow builds a limiter for policy backed by store.
func NewFixedWindow(store windowStore, policy Policy) (*FixedWindow, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store required")
	}
	policy.Name = strings.ToLower(strings.TrimSpace(policy.Name))
	if policy.Name == "" {
		return nil, fmt.Errorf("rate limit policy name required")
	}
	return &FixedWindow{store: store, policy: policy}, nil
}

// Allow records a hit for identifier. A disabled policy or empty identifier always passes.
func (l *FixedWindow) Allow(ctx context.Context, identifier string) (bool, error) {
	if l == nil || !l.policy.Enabled() {
		return true, nil
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return true, nil
	}
	allowed, _, err := l.store.FixedWindowAllow(ctx, l.policy.Name+":"+identifier, int64(l.policy.Limit), l.policy.Window)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", l.policy.Name, err)
	}
	return allowed, nil
}
