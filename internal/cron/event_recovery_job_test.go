package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

type fakeRecoverer struct {
	calls   int
	summary processor.RecoverySummary
	err     error
}

func (f *fakeRecoverer) Recover(context.Context) (processor.RecoverySummary, error) {
	f.calls++
	return f.summary, f.err
}

func TestEventRecoveryJobRunsRecover(t *testing.T) {
	rec := &fakeRecoverer{summary: processor.RecoverySummary{
		ResetStale: 2,
		Tenants:    []processor.Summary{{Tenant: "tenant_a", Completed: 3}},
	}}
	job, err := NewEventRecoveryJob(EventRecoveryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Processor: rec,
	})
	if err != nil {
		t.Fatalf("NewEventRecoveryJob: %v", err)
	}
	if job.Name() != "event-recovery" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("expected one recover call, got %d", rec.calls)
	}
}

func TestEventRecoveryJobPropagatesErrors(t *testing.T) {
	rec := &fakeRecoverer{err: errors.New("db down")}
	job, err := NewEventRecoveryJob(EventRecoveryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Processor: rec,
	})
	if err != nil {
		t.Fatalf("NewEventRecoveryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
