package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestProcessorMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProcessorMetrics(reg)
	m.IncProcessed("COMPLETED")
	m.IncProcessed("COMPLETED")
	m.IncHandlerOutcome("task", "FAILED")
	m.IncPausedSkip("acme")
	m.ObserveDuration(10 * time.Millisecond)
	m.IncClaimConflict()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterValue(t, mfs, "eventcore_events_processed_total", map[string]string{"status": "COMPLETED"}); got != 2 {
		t.Fatalf("expected processed=2, got %f", got)
	}
	if got := counterValue(t, mfs, "eventcore_event_handler_outcomes_total", map[string]string{"handler": "task", "status": "FAILED"}); got != 1 {
		t.Fatalf("expected handler outcome=1, got %f", got)
	}
	if got := counterValue(t, mfs, "eventcore_event_batches_skipped_paused_total", map[string]string{"tenant": "acme"}); got != 1 {
		t.Fatalf("expected paused skips=1, got %f", got)
	}
}

func TestProcessorMetricsNilSafe(t *testing.T) {
	var m *ProcessorMetrics
	m.IncProcessed("FAILED")
	m.IncHandlerOutcome("task", "FAILED")
	m.ObserveDuration(time.Second)
	m.IncPausedSkip("acme")
	m.IncClaimConflict()

	unregistered := NewProcessorMetrics(nil)
	unregistered.IncProcessed("FAILED")
}
