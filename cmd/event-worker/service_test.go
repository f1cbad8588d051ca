package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

type countingRecoverer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingRecoverer) Recover(context.Context) (processor.RecoverySummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return processor.RecoverySummary{Tenants: []processor.Summary{{Tenant: "tenant_a", Completed: 1}}}, c.err
}

func (c *countingRecoverer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestServiceRecoversOnStartupAndTicks(t *testing.T) {
	rec := &countingRecoverer{}
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Processor: rec,
		Interval:  10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if rec.count() < 2 {
		t.Fatalf("expected startup recovery plus ticks, got %d calls", rec.count())
	}
}

func TestServiceKeepsRunningAfterRecoverError(t *testing.T) {
	rec := &countingRecoverer{err: errors.New("db down")}
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Processor: rec,
		Interval:  5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_ = svc.Run(ctx)
	if rec.count() < 2 {
		t.Fatalf("expected repeated attempts, got %d", rec.count())
	}
}

func TestNewServiceRequiresProcessor(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard})}); err == nil {
		t.Fatal("expected error")
	}
}
