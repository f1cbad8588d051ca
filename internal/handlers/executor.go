package handlers

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/eventcore/internal/conditions"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/metrics"
)

var tracer = otel.Tracer("eventcore/handlers")

type ExecutorParams struct {
	Steps   []Step
	Logger  *logger.Logger
	Metrics *metrics.ProcessorMetrics
}

// Executor runs the handler chain for one event at a time.
type Executor struct {
	steps   []Step
	logg    *logger.Logger
	metrics *metrics.ProcessorMetrics
}

func NewExecutor(params ExecutorParams) (*Executor, error) {
	if len(params.Steps) == 0 {
		return nil, fmt.Errorf("executor requires at least one handler")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Executor{
		steps:   params.Steps,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Order returns the handler names in execution order.
func (e *Executor) Order() []string {
	names := make([]string, len(e.steps))
	for i, step := range e.steps {
		names[i] = step.Name
	}
	return names
}

// Execute runs every step in order and returns one result per handler.
// A failing or panicking handler never stops the chain.
func (e *Executor) Execute(ctx context.Context, evt *models.Event) models.HandlerResults {
	results := make(models.HandlerResults, len(e.steps))
	for _, step := range e.steps {
		var outcome Outcome
		if !conditions.Evaluate(evt, step.Condition) {
			outcome = Skipped()
		} else {
			outcome = e.run(ctx, step, evt, results)
		}
		res := outcome.Result()
		results[step.Name] = res
		e.metrics.IncHandlerOutcome(step.Name, string(res.Status))

		if res.Status == enums.HandlerStatusFailed {
			logCtx := e.logg.WithField(ctx, "handler", step.Name)
			e.logg.Error(logCtx, "event handler failed", outcome.Err)
		}
	}
	return results
}

func (e *Executor) run(ctx context.Context, step Step, evt *models.Event, results models.HandlerResults) (outcome Outcome) {
	spanCtx, span := tracer.Start(ctx, "event.handler",
		trace.WithAttributes(
			attribute.String("handler.name", step.Name),
			attribute.Int64("event.id", evt.ID),
			attribute.String("event.type", evt.EventType),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = Failed(fmt.Errorf("handler %s panicked: %v", step.Name, r))
			e.logg.Warn(e.logg.WithField(ctx, "stack", string(debug.Stack())), "recovered handler panic")
		}
		span.SetAttributes(
			attribute.String("handler.status", string(outcome.Status)),
			attribute.Int64("handler.duration_ms", time.Since(started).Milliseconds()),
		)
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, outcome.Err.Error())
		}
		span.End()
	}()

	prior := make(models.HandlerResults, len(results))
	for name, res := range results {
		prior[name] = res
	}
	return step.Handler.Handle(spanCtx, evt, prior)
}
