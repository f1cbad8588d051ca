package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/eventcore/internal/control"
	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
)

type controlOps interface {
	Pause(ctx context.Context, tenant, actor, reason string) (control.StatusSnapshot, error)
	Resume(ctx context.Context, tenant, actor string) (control.StatusSnapshot, error)
	Status(ctx context.Context, tenant string) (control.StatusSnapshot, error)
}

type processorOps interface {
	ProcessPending(ctx context.Context, tenant string) (processor.Summary, error)
	RetryFailed(ctx context.Context, tenant string, id int64) (*models.Event, error)
	Recover(ctx context.Context) (processor.RecoverySummary, error)
}

type cleanupOps interface {
	CleanupOldEvents(ctx context.Context, retentionDays, batchSize int) (int64, error)
}

type deps struct {
	control   controlOps
	processor processorOps
	cleanup   cleanupOps
}

type options struct {
	cmd           string
	tenant        string
	actor         string
	reason        string
	eventID       int64
	retentionDays int
	batchSize     int
}

func (o options) validate() error {
	switch o.cmd {
	case "pause", "resume", "status", "process":
		if o.tenant == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("-tenant is required for %s", o.cmd))
		}
	case "retry":
		if o.tenant == "" || o.eventID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "-tenant and -event-id are required for retry")
		}
	case "cleanup":
		if o.retentionDays < 0 || o.batchSize < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "-retention-days and -batch-size must not be negative")
		}
	case "recover":
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown -cmd value: %s", o.cmd))
	}
	return nil
}

// run executes one operator command and returns a JSON-serialisable result.
func run(ctx context.Context, opts options, d deps) (any, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	switch opts.cmd {
	case "pause":
		return d.control.Pause(ctx, opts.tenant, opts.actor, opts.reason)
	case "resume":
		return d.control.Resume(ctx, opts.tenant, opts.actor)
	case "status":
		return d.control.Status(ctx, opts.tenant)
	case "process":
		return d.processor.ProcessPending(ctx, opts.tenant)
	case "retry":
		return d.processor.RetryFailed(ctx, opts.tenant, opts.eventID)
	case "recover":
		return d.processor.Recover(ctx)
	case "cleanup":
		deleted, err := d.cleanup.CleanupOldEvents(ctx, opts.retentionDays, opts.batchSize)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": deleted}, nil
	}
	return nil, nil
}
