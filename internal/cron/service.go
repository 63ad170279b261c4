// Package cron runs the periodic maintenance jobs of the cron worker under a
// Redis lease so only one replica works per cycle.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Locker
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

type Service struct {
	logg     *logger.Logger
	jobs     []Job
	locker   Locker
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:     params.Logger,
		locker:   params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if params.Registry != nil {
		svc.jobs = params.Registry.Jobs()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run executes a cycle immediately and then once per interval until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single cycle. A failing job does not stop the ones after
// it; every failure is returned combined.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	ctx = s.logg.WithField(ctx, "cycle_id", uuid.NewString())

	unlock, held, err := s.locker.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lease held elsewhere, cycle skipped")
		return nil
	}
	defer func() {
		if relErr := unlock(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "cron lease release failed", relErr)
		}
	}()

	started := time.Now()
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(err, ctx.Err())
		}
		if jobErr := s.runJob(ctx, job); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(s.jobs),
		"failed":      len(multierr.Errors(err)),
		"duration_ms": time.Since(started).Milliseconds(),
	}), "cron cycle finished")
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	start := time.Now()
	items, err := job.Run(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(name, elapsed, items, err)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"items":       items,
	})
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return err
	}
	s.logg.Debug(ctx, "cron job done")
	return nil
}
