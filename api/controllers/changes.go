package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/eventcore/api/middleware"
	"github.com/angelmondragon/eventcore/api/responses"
	"github.com/angelmondragon/eventcore/api/validators"
	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

// ChangeTracker turns entity mutations into events.
type ChangeTracker interface {
	Track(ctx context.Context, change events.Change) ([]*models.Event, error)
}

// ChangeRequest is posted by the entity layer after it committed a mutation.
type ChangeRequest struct {
	EntityType  string            `json:"entity_type" validate:"required,max=100"`
	EntityID    string            `json:"entity_id" validate:"required,max=100"`
	Action      enums.EventAction `json:"action" validate:"required,oneof=CREATE UPDATE DELETE"`
	Previous    map[string]any    `json:"previous_state"`
	Current     map[string]any    `json:"current_state"`
	PerformedBy string            `json:"performed_by" validate:"omitempty,max=100"`
	Metadata    map[string]any    `json:"metadata"`
}

// TrackChange enqueues the events derived from one entity change.
func TrackChange(tracker ChangeTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change tracker unavailable"))
			return
		}
		var body ChangeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := tracker.Track(r.Context(), events.Change{
			Tenant:     middleware.TenantFromContext(r.Context()),
			EntityType: body.EntityType,
			EntityID:   body.EntityID,
			Action:     body.Action,
			Previous:   body.Previous,
			Current:    body.Current,
			Actor:      validators.SanitizeString(body.PerformedBy, 100),
			Metadata:   body.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if created == nil {
			created = []*models.Event{}
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"events": created})
	}
}
