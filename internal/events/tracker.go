package events

import (
	"context"
	"fmt"
	"slices"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

// Change is reported by the entity layer after it persisted a mutation.
type Change struct {
	Tenant     string            `json:"tenant_schema"`
	EntityType string            `json:"entity_type" validate:"required"`
	EntityID   string            `json:"entity_id" validate:"required"`
	Action     enums.EventAction `json:"action" validate:"required,oneof=CREATE UPDATE DELETE"`
	Previous   map[string]any    `json:"previous_state"`
	Current    map[string]any    `json:"current_state"`
	Actor      string            `json:"performed_by"`
	Metadata   map[string]any    `json:"metadata"`
}

// Dispatcher drains pending events for a tenant.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenant string) error
}

type TrackerParams struct {
	Events        Service
	Logger        *logger.Logger
	TrackedFields map[string][]string
	// Dispatcher is optional; nil leaves draining to the scheduler.
	Dispatcher Dispatcher
}

// Tracker turns entity changes into events and triggers processing.
type Tracker struct {
	events     Service
	logg       *logger.Logger
	tracked    map[string][]string
	dispatcher Dispatcher
}

func NewTracker(params TrackerParams) (*Tracker, error) {
	if params.Events == nil {
		return nil, fmt.Errorf("events service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	tracked := make(map[string][]string, len(params.TrackedFields))
	for entity, fields := range params.TrackedFields {
		tracked[entity] = slices.Clone(fields)
	}
	return &Tracker{
		events:     params.Events,
		logg:       params.Logger,
		tracked:    tracked,
		dispatcher: params.Dispatcher,
	}, nil
}

// Track enqueues the events derived from change. UPDATEs on entity types with
// tracked fields produce one `<Entity>.<field>.UPDATE` event per changed
// tracked field; other UPDATEs produce a single `<Entity>.UPDATE`. CREATE and
// DELETE produce `<Entity>.<ACTION>`. The events of one change are stored
// together or not at all.
func (t *Tracker) Track(ctx context.Context, change Change) ([]*models.Event, error) {
	inputs, err := t.plan(change)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	created, err := t.events.EnqueueAll(ctx, inputs)
	if err != nil {
		return nil, err
	}

	if t.dispatcher != nil {
		if err := t.dispatcher.Dispatch(ctx, change.Tenant); err != nil {
			// the events are durable; the next trigger picks them up
			t.logg.Error(t.logg.WithTenant(ctx, change.Tenant), "immediate dispatch failed", err)
		}
	}
	return created, nil
}

func (t *Tracker) plan(change Change) ([]EnqueueInput, error) {
	if change.EntityType == "" || change.EntityID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity_type and entity_id are required")
	}
	base := EnqueueInput{
		EntityType:    change.EntityType,
		EntityID:      change.EntityID,
		TenantSchema:  change.Tenant,
		Action:        change.Action,
		PreviousState: change.Previous,
		CurrentState:  change.Current,
		PerformedBy:   change.Actor,
		Metadata:      change.Metadata,
	}

	switch change.Action {
	case enums.EventActionCreate:
		base.EventType = fmt.Sprintf("%s.%s", change.EntityType, change.Action)
		base.PreviousState = map[string]any{}
		base.ChangedFields = []string{}
		return []EnqueueInput{base}, nil
	case enums.EventActionDelete:
		base.EventType = fmt.Sprintf("%s.%s", change.EntityType, change.Action)
		if base.CurrentState == nil {
			base.CurrentState = change.Previous
		}
		base.ChangedFields = []string{}
		return []EnqueueInput{base}, nil
	case enums.EventActionUpdate:
		changed := ChangedFields(change.Previous, change.Current)
		if len(changed) == 0 {
			return nil, nil
		}
		fields, tracked := t.tracked[change.EntityType]
		if !tracked {
			base.EventType = fmt.Sprintf("%s.%s", change.EntityType, change.Action)
			base.ChangedFields = changed
			return []EnqueueInput{base}, nil
		}
		var inputs []EnqueueInput
		for _, field := range fields {
			if !slices.Contains(changed, field) {
				continue
			}
			in := base
			in.EventType = fmt.Sprintf("%s.%s.%s", change.EntityType, field, change.Action)
			in.ChangedFields = []string{field}
			inputs = append(inputs, in)
		}
		return inputs, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown action").
			WithDetails(map[string]any{"action": change.Action})
	}
}
