package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProcessorMetrics records event lifecycle transitions and handler outcomes.
type ProcessorMetrics struct {
	processed      *prometheus.CounterVec
	handlerOutcome *prometheus.CounterVec
	duration       prometheus.Histogram
	pausedSkips    *prometheus.CounterVec
	claimConflicts prometheus.Counter
}

// NewProcessorMetrics registers the processor metrics on the provided registerer.
func NewProcessorMetrics(reg prometheus.Registerer) *ProcessorMetrics {
	if reg == nil {
		return &ProcessorMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcore_events_processed_total",
		Help: "Events that left PROCESSING, labelled by resulting status.",
	}, []string{"status"})
	handlerOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcore_event_handler_outcomes_total",
		Help: "Handler outcomes per handler name and status.",
	}, []string{"handler", "status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventcore_event_processing_duration_seconds",
		Help:    "Time spent running the handler chain for a single event.",
		Buckets: prometheus.DefBuckets,
	})
	pausedSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcore_event_batches_skipped_paused_total",
		Help: "Processing runs that returned early because the tenant was paused.",
	}, []string{"tenant"})
	claimConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcore_event_claim_conflicts_total",
		Help: "Claims lost to a concurrent worker.",
	})
	reg.MustRegister(processed, handlerOutcome, duration, pausedSkips, claimConflicts)
	return &ProcessorMetrics{
		processed:      processed,
		handlerOutcome: handlerOutcome,
		duration:       duration,
		pausedSkips:    pausedSkips,
		claimConflicts: claimConflicts,
	}
}

// IncProcessed counts an event transition out of PROCESSING.
func (p *ProcessorMetrics) IncProcessed(status string) {
	if p == nil || p.processed == nil {
		return
	}
	p.processed.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncHandlerOutcome counts one handler result.
func (p *ProcessorMetrics) IncHandlerOutcome(handler, status string) {
	if p == nil || p.handlerOutcome == nil {
		return
	}
	p.handlerOutcome.WithLabelValues(normalizeLabel(handler), normalizeLabel(status)).Inc()
}

// ObserveDuration records the handler chain duration for one event.
func (p *ProcessorMetrics) ObserveDuration(duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.Observe(duration.Seconds())
}

// IncPausedSkip counts a run that found the tenant paused.
func (p *ProcessorMetrics) IncPausedSkip(tenant string) {
	if p == nil || p.pausedSkips == nil {
		return
	}
	p.pausedSkips.WithLabelValues(normalizeLabel(tenant)).Inc()
}

// IncClaimConflict counts a claim another worker won.
func (p *ProcessorMetrics) IncClaimConflict() {
	if p == nil || p.claimConflicts == nil {
		return
	}
	p.claimConflicts.Inc()
}
