package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/pkg/config"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// blockingPinger answers only once its context ends.
type blockingPinger struct{}

func (blockingPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	cases := []struct {
		name string
		deps map[string]Pinger
		want int
	}{
		{"all up", map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, http.StatusOK},
		{"nil deps skipped", map[string]Pinger{"db": stubPinger{}, "pubsub": nil}, http.StatusOK},
		{"one down", map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("down")}}, http.StatusServiceUnavailable},
		{"failure cancels slow pings", map[string]Pinger{"db": blockingPinger{}, "redis": stubPinger{err: errors.New("down")}}, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthReady(cfg, tc.deps, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			require.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "test", rec.Header().Get("X-POS-Env"))
		})
	}
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthLive(&config.Config{App: config.AppConfig{Env: "dev"}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"live"}}`, rec.Body.String())
}
