package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	recovery := &stubJob{name: "event-recovery"}
	cleanup := &stubJob{name: "event-cleanup"}
	registry, err := NewRegistry(recovery, cleanup)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != recovery || jobs[1] != cleanup {
		t.Fatalf("jobs returned out of order: %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	registry, _ := NewRegistry()
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected nil job error")
	}
}

func TestRegistrySelect(t *testing.T) {
	registry, _ := NewRegistry(&stubJob{name: "event-recovery"}, &stubJob{name: "event-cleanup"}, &stubJob{name: "notification-cleanup"})

	selected, err := registry.Select("notification-cleanup", "event-recovery")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(selected) != 2 || selected[0].Name() != "event-recovery" || selected[1].Name() != "notification-cleanup" {
		t.Fatalf("unexpected selection %v", selected)
	}
	if all, _ := registry.Select(); len(all) != 3 {
		t.Fatalf("expected all jobs, got %d", len(all))
	}
	if _, err := registry.Select("outbox-retention"); err == nil {
		t.Fatal("expected unknown job error")
	}
}
