package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

type recoverer interface {
	Recover(ctx context.Context) (processor.RecoverySummary, error)
}

type EventRecoveryJobParams struct {
	Logger    *logger.Logger
	Processor recoverer
}

// NewEventRecoveryJob resets stuck PROCESSING events and drains every tenant
// holding due PENDING work.
func NewEventRecoveryJob(params EventRecoveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor required")
	}
	return &eventRecoveryJob{logg: params.Logger, processor: params.Processor}, nil
}

type eventRecoveryJob struct {
	logg      *logger.Logger
	processor recoverer
}

func (j *eventRecoveryJob) Name() string { return "event-recovery" }

func (j *eventRecoveryJob) Run(ctx context.Context) error {
	summary, err := j.processor.Recover(ctx)
	var completed, retried, failed int
	for _, tenant := range summary.Tenants {
		completed += tenant.Completed
		retried += tenant.Retried
		failed += tenant.Failed
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"reset_stale":  summary.ResetStale,
		"failed_stale": summary.FailedStale,
		"tenants":      len(summary.Tenants),
		"completed":    completed,
		"retried":      retried,
		"failed":       failed,
	})
	if err != nil {
		return fmt.Errorf("event recovery: %w", err)
	}
	j.logg.Info(logCtx, "event recovery complete")
	return nil
}
