package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultPruneBatch      = 500
)

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository publishedPruner
	Retention  time.Duration
	BatchSize  int
}

// NewOutboxRetentionJob builds the job that prunes relayed outbox rows once
// they are older than Retention. Deletes run in batches so one cycle never
// holds a long lock on the table.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		pruner:    params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	pruner    publishedPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	total, batches := 0, 0
	for ctx.Err() == nil {
		n, err := j.pruner.DeletePublishedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return total, fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		total += int(n)
		batches++
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"batches": batches,
		"pruned":  total,
	}), "outbox pruned")
	return total, ctx.Err()
}
