package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/eventcore/api/controllers"
	"github.com/angelmondragon/eventcore/api/middleware"
	"github.com/angelmondragon/eventcore/internal/activities"
	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/internal/notifications"
	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

// RouterParams carries the services mounted by NewRouter. Nil services answer
// with an internal error instead of panicking.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger
	// Idempotency is optional; without it Idempotency-Key headers are ignored.
	Idempotency middleware.IdempotencyStore
	// Gatherer backs /metrics; defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer

	Control       controllers.ProcessingControl
	Processor     controllers.EventProcessor
	Cleaner       controllers.EventCleaner
	Tracker       controllers.ChangeTracker
	Events        events.Service
	Notifications notifications.Service
	Activities    activities.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger
	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Idempotency(params.Idempotency, logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/events/cleanup", controllers.AdminCleanupEvents(params.Cleaner, logg))

		r.Route("/tenants/{tenant}/events", func(r chi.Router) {
			r.Use(middleware.TenantContext(logg))
			r.Get("/", controllers.AdminListEvents(params.Events, logg))
			r.Get("/status", controllers.AdminEventStatus(params.Control, logg))
			r.Post("/pause", controllers.AdminPauseEvents(params.Control, logg))
			r.Post("/resume", controllers.AdminResumeEvents(params.Control, logg))
			r.Post("/process", controllers.AdminProcessEvents(params.Processor, logg))
			r.Post("/{eventId}/retry", controllers.AdminRetryEvent(params.Processor, logg))
		})
	})

	r.Route("/api/v1/tenants/{tenant}", func(r chi.Router) {
		r.Use(middleware.TenantContext(logg))
		r.Post("/changes", controllers.TrackChange(params.Tracker, logg))
		r.Get("/activities", controllers.ListActivities(params.Activities, logg))
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.Notifications, logg))
			r.Post("/read", controllers.MarkAllNotificationsRead(params.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(params.Notifications, logg))
		})
	})

	return r
}
