package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

type fakeLocker struct {
	held     bool
	err      error
	releases int
}

func (f *fakeLocker) TryLock(context.Context) (Unlock, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.releases++
		return nil
	}, true, nil
}

type testJob struct {
	name  string
	items int
	err   error
	runs  int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) (int, error) {
	t.runs++
	return t.items, t.err
}

func newTestService(t *testing.T, locker Locker, m *metrics.CronJobMetrics, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     locker,
		Metrics:  m,
		Interval: time.Hour,
	})
	require.NoError(t, err)
	return service
}

func TestRunOnceRunsAllJobsAndCombinesFailures(t *testing.T) {
	first := &testJob{name: "first", err: errors.New("boom")}
	second := &testJob{name: "second", items: 3}
	third := &testJob{name: "third", err: errors.New("bang")}
	locker := &fakeLocker{}
	reg := prometheus.NewRegistry()
	service := newTestService(t, locker, metrics.NewCronJobMetrics(reg), first, second, third)

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorContains(t, err, "first: boom")
	require.ErrorContains(t, err, "third: bang")

	for _, job := range []*testJob{first, second, third} {
		require.Equal(t, 1, job.runs, job.name)
	}
	require.Equal(t, 1, locker.releases)
	require.False(t, locker.held)

	count, err := testutil.GatherAndCount(reg, "pos_cron_job_items_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRunOnceLockOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		locker  *fakeLocker
		wantErr string
	}{
		{name: "held elsewhere", locker: &fakeLocker{held: true}},
		{name: "store down", locker: &fakeLocker{err: errors.New("redis down")}, wantErr: "redis down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := &testJob{name: "job"}
			service := newTestService(t, tc.locker, nil, job)

			err := service.RunOnce(context.Background())
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tc.wantErr)
			}
			require.Zero(t, job.runs)
			require.Zero(t, tc.locker.releases)
		})
	}
}

func TestRunStopsOnCancelAndReleasesLease(t *testing.T) {
	job := &testJob{name: "job"}
	locker := &fakeLocker{}
	service := newTestService(t, locker, nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, service.Run(ctx), context.Canceled)
	require.Zero(t, job.runs)
	require.Equal(t, 1, locker.releases)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLocker{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	require.Error(t, err)

	service, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLocker{}})
	require.NoError(t, err)
	require.Equal(t, defaultInterval, service.interval)
	require.NoError(t, service.RunOnce(context.Background()))
}

func TestRedisLockLeasesAreOwnerScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	ctx := context.Background()
	key := client.LockKey("cron-worker")

	first, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	unlock, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// an expired lease must not free the key for whoever took it next
	mr.FastForward(2 * time.Minute)
	takeover, ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, unlock(ctx))
	require.True(t, mr.Exists(key))

	require.NoError(t, takeover(ctx))
	require.False(t, mr.Exists(key))
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	require.Error(t, err)
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	_, err = NewRedisLock(client, " ", time.Minute)
	require.Error(t, err)

	lock, err := NewRedisLock(client, "k", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)
}
