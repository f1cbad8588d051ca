package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/eventcore/api/middleware"
	"github.com/angelmondragon/eventcore/api/responses"
	"github.com/angelmondragon/eventcore/api/validators"
	"github.com/angelmondragon/eventcore/internal/activities"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

// ListActivities returns the timeline of one entity, newest first.
func ListActivities(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activities service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		rows, err := svc.ListByEntity(r.Context(), activities.ListParams{
			Tenant:     middleware.TenantFromContext(r.Context()),
			EntityType: strings.TrimSpace(query.Get("entity_type")),
			EntityID:   strings.TrimSpace(query.Get("entity_id")),
			Limit:      limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}
