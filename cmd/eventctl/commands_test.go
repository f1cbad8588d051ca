package main

import (
	"context"
	"testing"

	"github.com/angelmondragon/eventcore/internal/control"
	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
)

type fakeOps struct {
	calls []string
	args  []any
}

func (f *fakeOps) Pause(ctx context.Context, tenant, actor, reason string) (control.StatusSnapshot, error) {
	f.calls = append(f.calls, "pause")
	f.args = append(f.args, tenant, actor, reason)
	return control.StatusSnapshot{TenantSchema: tenant, IsPaused: true}, nil
}

func (f *fakeOps) Resume(ctx context.Context, tenant, actor string) (control.StatusSnapshot, error) {
	f.calls = append(f.calls, "resume")
	return control.StatusSnapshot{TenantSchema: tenant}, nil
}

func (f *fakeOps) Status(ctx context.Context, tenant string) (control.StatusSnapshot, error) {
	f.calls = append(f.calls, "status")
	return control.StatusSnapshot{TenantSchema: tenant}, nil
}

func (f *fakeOps) ProcessPending(ctx context.Context, tenant string) (processor.Summary, error) {
	f.calls = append(f.calls, "process")
	return processor.Summary{Tenant: tenant}, nil
}

func (f *fakeOps) RetryFailed(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	f.calls = append(f.calls, "retry")
	f.args = append(f.args, id)
	return &models.Event{ID: id}, nil
}

func (f *fakeOps) Recover(ctx context.Context) (processor.RecoverySummary, error) {
	f.calls = append(f.calls, "recover")
	return processor.RecoverySummary{}, nil
}

func (f *fakeOps) CleanupOldEvents(ctx context.Context, retentionDays, batchSize int) (int64, error) {
	f.calls = append(f.calls, "cleanup")
	f.args = append(f.args, retentionDays, batchSize)
	return 12, nil
}

func depsFor(f *fakeOps) deps {
	return deps{control: f, processor: f, cleanup: f}
}

func TestRunPauseForwardsArguments(t *testing.T) {
	f := &fakeOps{}
	result, err := run(context.Background(), options{cmd: "pause", tenant: "tenant_a", actor: "ops", reason: "deploy"}, depsFor(f))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	snapshot, ok := result.(control.StatusSnapshot)
	if !ok || !snapshot.IsPaused {
		t.Fatalf("unexpected result %#v", result)
	}
	if len(f.args) != 3 || f.args[0] != "tenant_a" || f.args[1] != "ops" || f.args[2] != "deploy" {
		t.Fatalf("unexpected args %v", f.args)
	}
}

func TestRunCleanupReturnsDeletedCount(t *testing.T) {
	f := &fakeOps{}
	result, err := run(context.Background(), options{cmd: "cleanup", retentionDays: 7, batchSize: 200}, depsFor(f))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	body, ok := result.(map[string]any)
	if !ok || body["deleted"] != int64(12) {
		t.Fatalf("unexpected result %#v", result)
	}
	if f.args[0] != 7 || f.args[1] != 200 {
		t.Fatalf("unexpected args %v", f.args)
	}
}

func TestRunRetryRequiresEventID(t *testing.T) {
	f := &fakeOps{}
	_, err := run(context.Background(), options{cmd: "retry", tenant: "tenant_a"}, depsFor(f))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("expected no calls, got %v", f.calls)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	_, err := run(context.Background(), options{cmd: "purge"}, depsFor(&fakeOps{}))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunTenantCommandsRequireTenant(t *testing.T) {
	for _, cmd := range []string{"pause", "resume", "status", "process"} {
		if _, err := run(context.Background(), options{cmd: cmd}, depsFor(&fakeOps{})); err == nil {
			t.Fatalf("%s: expected error without tenant", cmd)
		}
	}
}

func TestRunDispatchesCommands(t *testing.T) {
	f := &fakeOps{}
	cmds := []options{
		{cmd: "status", tenant: "tenant_a"},
		{cmd: "resume", tenant: "tenant_a"},
		{cmd: "process", tenant: "tenant_a"},
		{cmd: "retry", tenant: "tenant_a", eventID: 4},
		{cmd: "recover"},
	}
	for _, opts := range cmds {
		if _, err := run(context.Background(), opts, depsFor(f)); err != nil {
			t.Fatalf("%s: %v", opts.cmd, err)
		}
	}
	want := []string{"status", "resume", "process", "retry", "recover"}
	for i, call := range want {
		if f.calls[i] != call {
			t.Fatalf("call %d: expected %s, got %s", i, call, f.calls[i])
		}
	}
}
