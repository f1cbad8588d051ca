// Package processor drives events through PENDING -> PROCESSING -> COMPLETED,
// FAILED or back to PENDING for another attempt.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"gorm.io/datatypes"

	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/metrics"
)

const (
	defaultBatchSize  = 100
	defaultStaleAfter = 15 * time.Minute
)

var tracer = otel.Tracer("eventcore/processor")

// PauseChecker reports whether processing is paused for a tenant.
type PauseChecker interface {
	IsPaused(ctx context.Context, tenant string) (bool, error)
}

// Chain runs the handlers for one event.
type Chain interface {
	Execute(ctx context.Context, evt *models.Event) models.HandlerResults
}

type ServiceParams struct {
	Events     events.Repository
	Control    PauseChecker
	Chain      Chain
	Logger     *logger.Logger
	Metrics    *metrics.ProcessorMetrics
	BatchSize  int
	Backoff    Backoff
	StaleAfter time.Duration
	Now        func() time.Time
}

// Summary describes one ProcessPending or DrainPending run.
type Summary struct {
	Tenant    string `json:"tenant_schema"`
	Paused    bool   `json:"paused"`
	Fetched   int    `json:"fetched"`
	Completed int    `json:"completed"`
	Retried   int    `json:"retried"`
	Failed    int    `json:"failed"`
	Conflicts int    `json:"conflicts"`
	Errors    int    `json:"errors"`
	// Batches is set by DrainPending.
	Batches   int    `json:"batches,omitempty"`
}

func (s *Summary) add(run Summary) {
	s.Paused = run.Paused
	s.Fetched += run.Fetched
	s.Completed += run.Completed
	s.Retried += run.Retried
	s.Failed += run.Failed
	s.Conflicts += run.Conflicts
	s.Errors += run.Errors
	s.Batches++
}

// settled reports the events whose claim and outcome were both stored.
func (s Summary) settled() int {
	return s.Completed + s.Retried + s.Failed
}

// RecoverySummary describes a Recover run across tenants.
type RecoverySummary struct {
	ResetStale  int64     `json:"reset_stale"`
	// FailedStale counts stuck events that had no retry budget left.
	FailedStale int64     `json:"failed_stale"`
	Tenants     []Summary `json:"tenants"`
}

type Service struct {
	repo       events.Repository
	control    PauseChecker
	chain      Chain
	logg       *logger.Logger
	metrics    *metrics.ProcessorMetrics
	batchSize  int
	backoff    Backoff
	staleAfter time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, errors.New("events repository is required")
	}
	if params.Control == nil {
		return nil, errors.New("processing control is required")
	}
	if params.Chain == nil {
		return nil, errors.New("handler chain is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	stale := params.StaleAfter
	if stale <= 0 {
		stale = defaultStaleAfter
	}
	backoff := params.Backoff
	if backoff.JitterFraction == 0 {
		backoff.JitterFraction = defaultJitterFraction
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       params.Events,
		control:    params.Control,
		chain:      params.Chain,
		logg:       params.Logger,
		metrics:    params.Metrics,
		batchSize:  batch,
		backoff:    backoff,
		staleAfter: stale,
		now:        func() time.Time { return now().UTC() },
	}, nil
}

// Dispatch drains a tenant's pending events. It satisfies events.Dispatcher.
func (s *Service) Dispatch(ctx context.Context, tenant string) error {
	_, err := s.ProcessPending(ctx, tenant)
	return err
}

// ProcessPending handles one FIFO batch of due PENDING events. When the
// tenant is paused nothing is touched.
func (s *Service) ProcessPending(ctx context.Context, tenant string) (Summary, error) {
	summary := Summary{Tenant: tenant}
	if strings.TrimSpace(tenant) == "" {
		return summary, pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required")
	}
	ctx = s.logg.WithTenant(ctx, tenant)

	paused, err := s.control.IsPaused(ctx, tenant)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read processing control")
	}
	if paused {
		summary.Paused = true
		s.metrics.IncPausedSkip(tenant)
		s.logg.Debug(ctx, "event processing paused; batch skipped")
		return summary, nil
	}

	batch, err := s.repo.ListPendingForProcessing(ctx, tenant, s.batchSize, s.now())
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending events")
	}
	summary.Fetched = len(batch)

	for i := range batch {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		evt := &batch[i]
		status, err := s.process(ctx, evt)
		switch {
		case err != nil:
			summary.Errors++
		case status == "":
			summary.Conflicts++
		case status == enums.EventStatusCompleted:
			summary.Completed++
		case status == enums.EventStatusFailed:
			summary.Failed++
		case status == enums.EventStatusPending:
			summary.Retried++
		}
	}

	if summary.Fetched > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"fetched":   summary.Fetched,
			"completed": summary.Completed,
			"retried":   summary.Retried,
			"failed":    summary.Failed,
			"conflicts": summary.Conflicts,
			"errors":    summary.Errors,
		})
		s.logg.Info(logCtx, "event batch processed")
	}
	return summary, nil
}

// DrainPending runs ProcessPending until the tenant has no due events left.
// It stops early when the tenant is paused or a batch settles nothing (every
// claim lost or every save failed), leaving the rest for the next trigger.
// Events retried without backoff become due again and are picked up by a
// later batch; max_retries bounds how often that happens.
func (s *Service) DrainPending(ctx context.Context, tenant string) (Summary, error) {
	total := Summary{Tenant: tenant}
	for {
		run, err := s.ProcessPending(ctx, tenant)
		total.add(run)
		if err != nil {
			return total, err
		}
		if run.Paused || run.Fetched < s.batchSize || run.settled() == 0 {
			return total, nil
		}
	}
}

// ProcessEvent processes a single PENDING event regardless of its due time.
func (s *Service) ProcessEvent(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	ctx = s.logg.WithEventID(s.logg.WithTenant(ctx, tenant), id)
	paused, err := s.control.IsPaused(ctx, tenant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read processing control")
	}
	if paused {
		return nil, pkgerrors.New(pkgerrors.CodePaused, "event processing is paused").
			WithDetails(map[string]any{"tenant_schema": tenant})
	}

	evt, err := s.load(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if evt.Status != enums.EventStatusPending {
		return evt, pkgerrors.New(pkgerrors.CodeStateConflict, "event is not pending").
			WithDetails(map[string]any{"status": evt.Status})
	}
	status, err := s.process(ctx, evt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process event")
	}
	if status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "event was claimed by another worker")
	}
	return evt, nil
}

// RetryFailed gives a FAILED event a fresh retry budget and processes it
// unless the tenant is paused.
func (s *Service) RetryFailed(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	ctx = s.logg.WithEventID(s.logg.WithTenant(ctx, tenant), id)
	reset, err := s.repo.ResetFailed(ctx, tenant, id, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset failed event")
	}
	if !reset {
		evt, err := s.load(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		return evt, pkgerrors.New(pkgerrors.CodeStateConflict, "only FAILED events can be retried").
			WithDetails(map[string]any{"status": evt.Status})
	}
	s.logg.Info(ctx, "failed event reset for retry")

	evt, err := s.ProcessEvent(ctx, tenant, id)
	if pkgerrors.IsCode(err, pkgerrors.CodePaused) {
		return s.load(ctx, tenant, id)
	}
	return evt, err
}

// Recover returns events stuck in PROCESSING to PENDING and drains every
// tenant that has due work until its backlog is empty.
func (s *Service) Recover(ctx context.Context) (RecoverySummary, error) {
	var summary RecoverySummary
	now := s.now()
	reset, err := s.repo.ResetStaleProcessing(ctx, now.Add(-s.staleAfter), now)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset stale events")
	}
	summary.ResetStale = reset.Requeued
	summary.FailedStale = reset.Failed
	if reset.Requeued > 0 || reset.Failed > 0 {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"requeued": reset.Requeued,
			"failed":   reset.Failed,
		}), "stale PROCESSING events recovered")
	}

	tenants, err := s.repo.PendingTenants(ctx, now)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tenants with pending events")
	}
	sort.Strings(tenants)

	var errs error
	for _, tenant := range tenants {
		run, err := s.DrainPending(ctx, tenant)
		summary.Tenants = append(summary.Tenants, run)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenant, err))
		}
	}
	return summary, errs
}

func (s *Service) load(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	evt, err := s.repo.Get(ctx, tenant, id)
	if errors.Is(err, events.ErrNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "event not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return evt, nil
}

// process claims evt, runs the chain and stores the resulting transition.
// An empty status means another worker owns the event.
func (s *Service) process(ctx context.Context, evt *models.Event) (enums.EventStatus, error) {
	tenant := evt.Tenant()
	ctx = s.logg.WithEventID(ctx, evt.ID)
	ctx = s.logg.WithField(ctx, "event_type", evt.EventType)

	won, err := s.repo.Claim(ctx, tenant, evt.ID, s.now())
	if err != nil {
		s.logg.Error(ctx, "claim event failed", err)
		return "", err
	}
	if !won {
		s.metrics.IncClaimConflict()
		s.logg.Debug(ctx, "event already claimed")
		return "", nil
	}
	evt.Status = enums.EventStatusProcessing

	spanCtx, span := tracer.Start(ctx, "event.process",
		trace.WithAttributes(
			attribute.Int64("event.id", evt.ID),
			attribute.String("event.type", evt.EventType),
			attribute.String("tenant.schema", tenant),
			attribute.Int("event.retry_count", evt.RetryCount),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	started := time.Now()
	results := s.chain.Execute(spanCtx, evt)
	s.applyOutcome(evt, results, s.now())
	s.metrics.ObserveDuration(time.Since(started))

	saved, err := s.repo.SaveOutcome(ctx, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save outcome")
		s.logg.Error(ctx, "save event outcome failed; event stays PROCESSING until recovery", err)
		return "", err
	}
	if !saved {
		s.logg.Warn(ctx, "event left PROCESSING before its outcome was saved")
		return "", nil
	}

	span.SetAttributes(attribute.String("event.status", string(evt.Status)))
	if evt.Status != enums.EventStatusCompleted {
		span.SetStatus(codes.Error, string(evt.Status))
	}
	s.metrics.IncProcessed(string(evt.Status))
	s.logTransition(ctx, evt)
	return evt.Status, nil
}

// applyOutcome sets the next state from the handler results. retry_count
// never exceeds max_retries.
func (s *Service) applyOutcome(evt *models.Event, results models.HandlerResults, now time.Time) {
	evt.HandlerResults = datatypes.NewJSONType(results)
	evt.UpdatedAt = now

	if !results.AnyFailed() {
		evt.Status = enums.EventStatusCompleted
		evt.ProcessedAt = &now
		evt.ErrorMessage = nil
		evt.NextAttemptAt = nil
		return
	}

	msg := failureMessage(results)
	evt.ErrorMessage = &msg
	if events.CanRetry(evt) {
		evt.RetryCount++
		evt.Status = enums.EventStatusPending
		evt.ProcessedAt = nil
		evt.NextAttemptAt = nil
		if delay := s.backoff.Delay(evt.RetryCount); delay > 0 {
			next := now.Add(delay)
			evt.NextAttemptAt = &next
		}
		return
	}
	evt.Status = enums.EventStatusFailed
	evt.ProcessedAt = &now
	evt.NextAttemptAt = nil
}

func (s *Service) logTransition(ctx context.Context, evt *models.Event) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"status":      evt.Status,
		"retry_count": evt.RetryCount,
		"max_retries": evt.MaxRetries,
	})
	switch evt.Status {
	case enums.EventStatusFailed:
		s.logg.Error(logCtx, "event failed permanently", errors.New(deref(evt.ErrorMessage)))
	case enums.EventStatusPending:
		s.logg.Warn(logCtx, "event scheduled for retry: "+deref(evt.ErrorMessage))
	default:
		s.logg.Info(logCtx, "event completed")
	}
}

// failureMessage joins the errors of failed handlers in name order.
func failureMessage(results models.HandlerResults) string {
	names := make([]string, 0, len(results))
	for name, res := range results {
		if res.Status == enums.HandlerStatusFailed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, results[name].Error)
	}
	return strings.Join(parts, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
