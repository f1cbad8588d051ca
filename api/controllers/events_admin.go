package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/eventcore/api/middleware"
	"github.com/angelmondragon/eventcore/api/responses"
	"github.com/angelmondragon/eventcore/api/validators"
	"github.com/angelmondragon/eventcore/internal/control"
	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

// ProcessingControl is the operator surface of internal/control.
type ProcessingControl interface {
	Pause(ctx context.Context, tenant, actor, reason string) (control.StatusSnapshot, error)
	Resume(ctx context.Context, tenant, actor string) (control.StatusSnapshot, error)
	Status(ctx context.Context, tenant string) (control.StatusSnapshot, error)
}

// EventProcessor is the operator surface of internal/processor.
type EventProcessor interface {
	ProcessPending(ctx context.Context, tenant string) (processor.Summary, error)
	RetryFailed(ctx context.Context, tenant string, id int64) (*models.Event, error)
}

// EventCleaner removes completed events past retention.
type EventCleaner interface {
	CleanupOldEvents(ctx context.Context, retentionDays, batchSize int) (int64, error)
}

type PauseRequest struct {
	Actor  string `json:"actor" validate:"omitempty,max=100"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type ResumeRequest struct {
	Actor string `json:"actor" validate:"omitempty,max=100"`
}

type CleanupRequest struct {
	RetentionDays int `json:"retention_days" validate:"omitempty,min=1,max=3650"`
	BatchSize     int `json:"batch_size" validate:"omitempty,min=1,max=10000"`
}

// AdminEventStatus returns the processing status snapshot for the tenant.
func AdminEventStatus(svc ProcessingControl, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "control service unavailable"))
			return
		}
		snapshot, err := svc.Status(r.Context(), middleware.TenantFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func AdminPauseEvents(svc ProcessingControl, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "control service unavailable"))
			return
		}
		var body PauseRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := validators.SanitizeString(body.Actor, 100)
		ctx := r.Context()
		if logg != nil && actor != "" {
			ctx = logg.WithActor(ctx, actor)
		}
		snapshot, err := svc.Pause(ctx, middleware.TenantFromContext(ctx), actor, validators.SanitizeString(body.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func AdminResumeEvents(svc ProcessingControl, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "control service unavailable"))
			return
		}
		var body ResumeRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := validators.SanitizeString(body.Actor, 100)
		ctx := r.Context()
		if logg != nil && actor != "" {
			ctx = logg.WithActor(ctx, actor)
		}
		snapshot, err := svc.Resume(ctx, middleware.TenantFromContext(ctx), actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// AdminProcessEvents drains one batch of due events for the tenant.
func AdminProcessEvents(svc EventProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "processor unavailable"))
			return
		}
		summary, err := svc.ProcessPending(r.Context(), middleware.TenantFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminRetryEvent resets a FAILED event and processes it again.
func AdminRetryEvent(svc EventProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "processor unavailable"))
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "eventId"), "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithEventID(ctx, id)
		}
		evt, err := svc.RetryFailed(ctx, middleware.TenantFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, evt)
	}
}

// AdminListEvents lists events for the tenant, newest first.
func AdminListEvents(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "events service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		filter := events.Filter{
			Tenant:     middleware.TenantFromContext(r.Context()),
			EventType:  strings.TrimSpace(query.Get("event_type")),
			EntityType: strings.TrimSpace(query.Get("entity_type")),
			EntityID:   strings.TrimSpace(query.Get("entity_id")),
			Limit:      limit,
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParseEventStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = status
		}
		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

// AdminCleanupEvents deletes COMPLETED events older than the requested retention.
func AdminCleanupEvents(svc EventCleaner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleanup unavailable"))
			return
		}
		var body CleanupRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deleted, err := svc.CleanupOldEvents(r.Context(), body.RetentionDays, body.BatchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cleanup events"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": deleted})
	}
}

// decodeOptionalBody treats an empty body as the zero value.
func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}
