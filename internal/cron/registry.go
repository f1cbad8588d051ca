package cron

import (
	"context"
	"fmt"
	"sort"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. Names are unique.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil cron job")
	}
	name := job.Name()
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs in order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Select returns the named jobs in registration order. No names selects all.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.names[name]; !ok {
			known := make([]string, 0, len(r.names))
			for n := range r.names {
				known = append(known, n)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown cron job %q (known: %v)", name, known)
		}
		want[name] = true
	}
	var selected []Job
	for _, job := range r.jobs {
		if want[job.Name()] {
			selected = append(selected, job)
		}
	}
	return selected, nil
}
