package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is a scheduled task. Run reports how many rows it acted on.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Registry holds jobs in registration order. Names are unique.
type Registry struct {
	order []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends job. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.order = append(r.order, job)
	return nil
}

func (r *Registry) Len() int { return len(r.order) }

// Jobs returns a snapshot safe for the caller to modify.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.order...)
}
