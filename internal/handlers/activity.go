package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
)

// ActivityStore persists timeline entries.
type ActivityStore interface {
	Create(ctx context.Context, activity *models.Activity) (bool, error)
	FindByEvent(ctx context.Context, eventID int64) (*models.Activity, error)
}

// ActivityHandler writes one timeline entry per event.
type ActivityHandler struct {
	store ActivityStore
}

func NewActivityHandler(store ActivityStore) (*ActivityHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("activity store required")
	}
	return &ActivityHandler{store: store}, nil
}

func (h *ActivityHandler) Name() string { return NameActivity }

func (h *ActivityHandler) Handle(ctx context.Context, evt *models.Event, _ models.HandlerResults) Outcome {
	activity := &models.Activity{
		TenantSchema:  evt.Tenant(),
		EntityType:    evt.EntityType,
		EntityID:      evt.EntityID,
		EventID:       evt.ID,
		EventType:     evt.EventType,
		Action:        evt.Action,
		Description:   describe(evt),
		ChangedFields: evt.ChangedFields,
		Actor:         evt.Actor(),
	}
	created, err := h.store.Create(ctx, activity)
	if err != nil {
		return Failed(fmt.Errorf("create activity: %w", err))
	}
	if !created {
		existing, err := h.store.FindByEvent(ctx, evt.ID)
		if err != nil {
			return Failed(fmt.Errorf("load existing activity: %w", err))
		}
		activity = existing
	}
	return Success("activity:" + activity.ID.String())
}

func describe(evt *models.Event) string {
	subject := fmt.Sprintf("%s %s", evt.EntityType, evt.EntityID)
	switch evt.Action {
	case enums.EventActionCreate:
		return fmt.Sprintf("%s created by %s", subject, evt.Actor())
	case enums.EventActionDelete:
		return fmt.Sprintf("%s deleted by %s", subject, evt.Actor())
	default:
		if len(evt.ChangedFields) == 0 {
			return fmt.Sprintf("%s updated by %s", subject, evt.Actor())
		}
		return fmt.Sprintf("%s updated by %s: %s", subject, evt.Actor(), strings.Join([]string(evt.ChangedFields), ", "))
	}
}
