package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/ratelimit"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

type countingLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

func newCountingLimiter(limit int) *countingLimiter {
	return &countingLimiter{limit: limit, counts: map[string]int{}}
}

func (c *countingLimiter) Allow(_ context.Context, identifier string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[identifier]++
	return c.counts[identifier] <= c.limit, nil
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func loginRequest(email, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(fmt.Sprintf(`{"email":%q,"password":"secret"}`, email)))
	req.RemoteAddr = remote
	return req
}

func TestLoginThrottlePassesBodyThrough(t *testing.T) {
	limiters := LoginLimiters{IP: newCountingLimiter(2), Email: newCountingLimiter(2)}
	var seen string
	handler := LoginThrottle(limiters, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("tester@example.com", "1.2.3.4:5678"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seen, `"email":"tester@example.com"`)
}

func TestLoginThrottleCountsEmailAcrossAddresses(t *testing.T) {
	email := newCountingLimiter(2)
	handler := LoginThrottle(LoginLimiters{Email: email, Window: 15 * time.Minute}, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(" Blocked@Example.com", fmt.Sprintf("1.2.3.%d:5678", i+4)))

		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "900", rec.Header().Get("Retry-After"))
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
	}

	require.Len(t, email.counts, 1)
	for key := range email.counts {
		assert.NotContains(t, key, "example.com", "email must be hashed")
		assert.Equal(t, emailDigest(nil, []byte(`{"email":"blocked@example.com"}`)), key)
	}
}

func TestLoginThrottleIPWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	limiter, err := ratelimit.NewFixedWindow(redis.NewFromClient(raw), ratelimit.Policy{Name: "login:ip", Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	handler := LoginThrottle(LoginLimiters{IP: limiter}, nil)(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := loginRequest(fmt.Sprintf("user%d@example.com", i), "10.0.0.9:1")
		req.Header.Set("X-Forwarded-For", "5.6.7.8, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "attempt %d", i)
		assert.Empty(t, rec.Header().Get("Retry-After"))
	}
}

func TestLoginThrottleIgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := newCountingLimiter(2)
	handler := LoginThrottle(LoginLimiters{IP: limiter}, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := loginRequest(fmt.Sprintf("user%d@example.com", i), "203.0.113.7:4000")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i+1))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	require.Equal(t, map[string]int{"203.0.113.7": 3}, limiter.counts)
}

func TestLoginThrottleTrustsProxyHeadersWhenConfigured(t *testing.T) {
	limiter := newCountingLimiter(1)
	handler := LoginThrottle(LoginLimiters{IP: limiter, ClientIP: ClientIP(true)}, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := loginRequest("a@b.c", "10.0.0.1:4000")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, limiter.counts, 2)
	assert.NotContains(t, limiter.counts, "10.0.0.1")
}

func TestLoginThrottleFailsClosed(t *testing.T) {
	handler := LoginThrottle(LoginLimiters{IP: failingLimiter{}}, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@b.c", "9.9.9.9:1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginThrottleSkipsUnkeyedRequests(t *testing.T) {
	email := newCountingLimiter(0)
	handler := LoginThrottle(LoginLimiters{Email: email}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, email.counts)
}

func TestLoginThrottleDisabled(t *testing.T) {
	next := okHandler()
	handler := LoginThrottle(LoginLimiters{}, nil)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@b.c", "1.1.1.1:1"))
	require.Equal(t, http.StatusOK, rec.Code)
}
